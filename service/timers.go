package service

import "time"

// Clock источник текущего времени
type Clock interface {
	Now() time.Time
}

// Timer отменяемый отложенный вызов
type Timer interface {
	Stop() bool
}

// Scheduler создает таймеры. Колбэк выполняется в отдельной горутине.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

type timeScheduler struct{}

func (timeScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

func stopTimer(t Timer) {
	if t != nil {
		t.Stop()
	}
}
