package models

// Question вопрос раунда. Правильность ответа проверяет клиент,
// сервер получает только флаг correct.
type Question struct {
	ID          string   `json:"id"`
	Text        string   `json:"text"`
	Options     []string `json:"options"`
	AnswerIndex int      `json:"answer_index"`
	Difficulty  int      `json:"difficulty,omitempty"`
}

// Quiz набор вопросов, привязанный к матчу при создании
type Quiz struct {
	Name      string     `json:"name"`
	Subject   string     `json:"subject"`
	Questions []Question `json:"questions"`
}

// QuizQuery параметры выбора квиза у внешнего сервиса
type QuizQuery struct {
	Subject  string
	Level    int
	Language string
	School   string
}
