// Package notify — контракт push-уведомлений движка.
// Движок отдаёт события наружу через Notifier и сам никогда
// не управляет клиентскими соединениями.
package notify

import "github.com/vrulab/rigsync/internal/logger"

// Notifier — внешний слой доставки: событие, полезная нагрузка, комната (сессия).
type Notifier interface {
	Notify(event string, payload map[string]interface{}, room string)
}

// Func — адаптер функции под Notifier (тесты, встраивание).
type Func func(event string, payload map[string]interface{}, room string)

// Notify вызывает функцию.
func (f Func) Notify(event string, payload map[string]interface{}, room string) {
	f(event, payload, room)
}

// LogNotifier пишет события в лог (транспорт по умолчанию).
type LogNotifier struct{}

// Notify выводит событие через logger.Info.
func (LogNotifier) Notify(event string, payload map[string]interface{}, room string) {
	logger.Info("notify [%s] %s: %v", room, event, payload)
}

// Discard молча глотает события.
type Discard struct{}

// Notify ничего не делает.
func (Discard) Notify(event string, payload map[string]interface{}, room string) {}
