package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"quiz-battle/models"
)

// QuestionSource внешний сервис выбора квиза
type QuestionSource interface {
	SelectQuiz(ctx context.Context, query models.QuizQuery) (*models.Quiz, error)
}

// GradeLookup внешний сервис уровня ученика
type GradeLookup interface {
	GradeLevel(ctx context.Context, userID string) (int, error)
}

// DefaultLevel уровень сложности для гостей и при ошибке поиска
const DefaultLevel = 1

// HTTPQuizClient клиент сервиса квизов
type HTTPQuizClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPQuizClient создает клиент с таймаутом запроса
func NewHTTPQuizClient(baseURL string, timeout time.Duration) *HTTPQuizClient {
	return &HTTPQuizClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type quizResponse struct {
	Name      string            `json:"name"`
	Subject   string            `json:"subject"`
	Questions []models.Question `json:"questions"`
}

type gradeResponse struct {
	Grade int `json:"grade"`
}

// SelectQuiz запрашивает упорядоченный список вопросов для предмета и уровня
func (c *HTTPQuizClient) SelectQuiz(ctx context.Context, query models.QuizQuery) (*models.Quiz, error) {
	params := url.Values{}
	params.Set("subject", query.Subject)
	params.Set("level", strconv.Itoa(query.Level))
	if query.Language != "" {
		params.Set("language", query.Language)
	}
	if query.School != "" {
		params.Set("school", query.School)
	}

	var resp quizResponse
	if err := c.getJSON(ctx, params, &resp, "api", "v1", "quizzes", "select"); err != nil {
		return nil, err
	}
	if len(resp.Questions) == 0 {
		return nil, fmt.Errorf("quiz service returned no questions for subject %q", query.Subject)
	}

	subject := resp.Subject
	if subject == "" {
		subject = query.Subject
	}
	return &models.Quiz{Name: resp.Name, Subject: subject, Questions: resp.Questions}, nil
}

// GradeLevel возвращает уровень ученика
func (c *HTTPQuizClient) GradeLevel(ctx context.Context, userID string) (int, error) {
	var resp gradeResponse
	if err := c.getJSON(ctx, nil, &resp, "api", "v1", "users", userID, "grade"); err != nil {
		return 0, err
	}
	if resp.Grade <= 0 {
		return DefaultLevel, nil
	}
	return resp.Grade, nil
}

func (c *HTTPQuizClient) getJSON(ctx context.Context, params url.Values, out any, path ...string) error {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return fmt.Errorf("invalid quiz service URL %q: %w", c.baseURL, err)
	}
	endpoint := base.JoinPath(path...)
	if params != nil {
		endpoint.RawQuery = params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("quiz service request failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("quiz service returned status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode quiz service response: %w", err)
	}
	return nil
}

// DefaultQuiz встроенный набор вопросов на случай недоступности сервиса квизов
func DefaultQuiz(subject string) models.Quiz {
	return models.Quiz{
		Name:    "General Knowledge",
		Subject: subject,
		Questions: []models.Question{
			{ID: "default-1", Text: "What is 7 x 8?", Options: []string{"54", "56", "64", "48"}, AnswerIndex: 1, Difficulty: 1},
			{ID: "default-2", Text: "Which planet is known as the Red Planet?", Options: []string{"Venus", "Jupiter", "Mars", "Saturn"}, AnswerIndex: 2, Difficulty: 1},
			{ID: "default-3", Text: "What is the chemical symbol for water?", Options: []string{"H2O", "CO2", "O2", "NaCl"}, AnswerIndex: 0, Difficulty: 1},
			{ID: "default-4", Text: "How many sides does a hexagon have?", Options: []string{"5", "6", "7", "8"}, AnswerIndex: 1, Difficulty: 1},
			{ID: "default-5", Text: "What is the largest ocean on Earth?", Options: []string{"Atlantic", "Indian", "Arctic", "Pacific"}, AnswerIndex: 3, Difficulty: 1},
			{ID: "default-6", Text: "What is the square root of 81?", Options: []string{"7", "8", "9", "10"}, AnswerIndex: 2, Difficulty: 1},
			{ID: "default-7", Text: "Which gas do plants absorb from the air?", Options: []string{"Oxygen", "Carbon dioxide", "Nitrogen", "Helium"}, AnswerIndex: 1, Difficulty: 1},
			{ID: "default-8", Text: "What is 15% of 200?", Options: []string{"15", "20", "30", "35"}, AnswerIndex: 2, Difficulty: 2},
			{ID: "default-9", Text: "Which organ pumps blood through the body?", Options: []string{"Lungs", "Heart", "Liver", "Kidney"}, AnswerIndex: 1, Difficulty: 1},
			{ID: "default-10", Text: "What is the boiling point of water at sea level in Celsius?", Options: []string{"90", "100", "110", "120"}, AnswerIndex: 1, Difficulty: 1},
		},
	}
}
