// Package iocli отделяет вывод CLI от os.Stdout, чтобы команды можно было тестировать
package iocli

// IO
type IO interface {
	Println(a ...any)
	Printf(format string, a ...any)
	Write(p []byte) (n int, err error)
	// IsTerminal сообщает, подключен ли вывод к интерактивному терминалу
	IsTerminal() bool
}
