// Package logger — единый вывод логов rigsync с префиксом и учётом quiet.
package logger

import "log"

// Quiet при true отключает информационные сообщения (Info); Error выводится всегда.
var Quiet bool

// Info выводит сообщение с префиксом "rigsync: ", если Quiet == false.
func Info(format string, args ...interface{}) {
	if Quiet {
		return
	}
	log.Printf("rigsync: "+format, args...)
}

// Error выводит сообщение об ошибке с префиксом "rigsync: " всегда.
func Error(format string, args ...interface{}) {
	log.Printf("rigsync: "+format, args...)
}
