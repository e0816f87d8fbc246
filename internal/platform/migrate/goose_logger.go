package migrate

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

type gooseZapLogger struct {
	logger *zap.Logger
}

func (l gooseZapLogger) Printf(format string, v ...interface{}) {
	if l.logger == nil {
		return
	}
	l.logger.Info(strings.TrimSpace(fmt.Sprintf(format, v...)), zap.String("component", "goose"))
}

func (l gooseZapLogger) Fatalf(format string, v ...interface{}) {
	msg := strings.TrimSpace(fmt.Sprintf(format, v...))
	if l.logger == nil {
		l.logger = zap.NewNop()
	}
	l.logger.Fatal(msg, zap.String("component", "goose"))
}
