package internal

import (
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/exp/slog"
)

type Importance string

const (
	Info    Importance = " "
	Warning Importance = "?"
	Error   Importance = "!"
	Debug   Importance = "-"
)

type Logger struct {
	database       Database
	messageService MessageService
	location       *time.Location
	debugMode      bool
	out            *slog.Logger
	writer         chan *LogEvent
}

type LogEvent struct {
	Importance Importance
	Message    *FeatureLogMessage
}

func NewLogger(location *time.Location) *Logger {
	return newLogger(location, os.Stdout)
}

func newLogger(location *time.Location, w io.Writer) *Logger {
	if location == nil {
		location = time.UTC
	}
	logger := &Logger{
		location: location,
		out:      slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})),
		writer:   make(chan *LogEvent, 100),
	}
	go logger.startWriter()
	return logger
}

func (l *Logger) startWriter() {
	for event := range l.writer {
		message := event.Message
		l.logLine(event.Importance, message)

		if l.database != nil && event.Importance != Debug {
			if err := l.database.WriteLogMessage(message); err != nil {
				l.out.Error("write log to database failed", slog.Any("err", err))
			}
		}
		if l.messageService != nil && event.Importance == Error {
			if err := l.messageService.Send(message); err != nil {
				l.out.Error("sending log message failed", slog.Any("err", err))
			}
		}
	}
}

func (l *Logger) SetDebugMode(debugMode bool) {
	l.debugMode = debugMode
}

func (l *Logger) SetDatabase(database Database) {
	l.database = database
}

func (l *Logger) SetMessageService(messageService MessageService) {
	l.messageService = messageService
}

func logTime(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}

func (l *Logger) FeatureEvent(feature, id, text string) {
	l.logEvent(Info, l.newFeatureLogMessage(feature, id, text))
}

func (l *Logger) Debug(text string) {
	if !l.debugMode {
		return
	}
	l.logEvent(Debug, l.newFeatureLogMessage("debug", "", text))
}

func (l *Logger) Warn(text string) {
	l.logEvent(Warning, l.newFeatureLogMessage("warning", "", text))
}

func (l *Logger) Error(text string, err error) {
	l.logEvent(Error, l.newFeatureLogMessage("error", "", fmt.Sprintf("%s: %s", text, err)))
}

func (l *Logger) logEvent(importance Importance, message *FeatureLogMessage) {
	if message.Id == "" {
		message.Id = "*"
	}
	message.Importance = string(importance)
	l.writer <- &LogEvent{
		Importance: importance,
		Message:    message,
	}
}

func (l *Logger) logLine(importance Importance, message *FeatureLogMessage) {
	attrs := []any{slog.String("feature", message.Feature), slog.String("id", message.Id)}
	switch importance {
	case Error:
		l.out.Error(message.Text, attrs...)
	case Warning:
		l.out.Warn(message.Text, attrs...)
	case Debug:
		l.out.Debug(message.Text, attrs...)
	default:
		l.out.Info(message.Text, attrs...)
	}
}

func (l *Logger) newFeatureLogMessage(feature, id, text string) *FeatureLogMessage {
	now := time.Now()
	return &FeatureLogMessage{
		Time:      logTime(now.In(l.location)),
		TimeStamp: now.UTC(),
		Text:      text,
		Feature:   feature,
		Id:        id,
	}
}
