package service

// AudienceKind кому адресовано событие
type AudienceKind int

const (
	AudienceRoom AudienceKind = iota // Все соединения комнаты матча
	AudienceConn                     // Одно соединение
	AudienceAll                      // Все подключенные клиенты (слушатели лобби)
)

// Audience получатель события
type Audience struct {
	Kind   AudienceKind
	Target string
}

// ToRoom адресует событие комнате
func ToRoom(roomID string) Audience {
	return Audience{Kind: AudienceRoom, Target: roomID}
}

// ToConn адресует событие одному соединению
func ToConn(connID string) Audience {
	return Audience{Kind: AudienceConn, Target: connID}
}

// ToAll адресует событие всем соединениям
func ToAll() Audience {
	return Audience{Kind: AudienceAll}
}

// Transport доставляет события клиентам. Реализация не должна блокироваться
// и не должна вызывать BattleService изнутри Send.
type Transport interface {
	Join(connID, roomID string)
	Leave(connID, roomID string)
	Send(to Audience, event string, payload any)
}

type nopTransport struct{}

func (nopTransport) Join(string, string) {}
func (nopTransport) Leave(string, string) {}
func (nopTransport) Send(Audience, string, any) {}
