package logging

import (
	"fmt"
	"sync"
)

// LoggerManager хранит логгеры компонентов и общие уровни для новых логгеров
type LoggerManager struct {
	mu      sync.Mutex
	loggers map[string]*Logger
	console LogLevel
	file    LogLevel
}

var (
	globalManager *LoggerManager
	managerOnce   sync.Once
)

// GetLoggerManager возвращает глобальный менеджер логгеров
func GetLoggerManager() *LoggerManager {
	managerOnce.Do(func() {
		globalManager = &LoggerManager{
			loggers: make(map[string]*Logger),
			console: INFO,
			file:    DEBUG,
		}
	})
	return globalManager
}

// GetLogger возвращает логгер компонента. Повторный вызов отдаёт тот же экземпляр.
func (lm *LoggerManager) GetLogger(component string) (*Logger, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	if logger, ok := lm.loggers[component]; ok {
		return logger, nil
	}

	logger, err := NewLogger(component)
	if err != nil {
		return nil, fmt.Errorf("логгер %s: %w", component, err)
	}
	logger.SetLevels(lm.console, lm.file)
	lm.loggers[component] = logger
	return logger, nil
}

// MustGetLogger как GetLogger, но при ошибке файла пишет только в консоль
func (lm *LoggerManager) MustGetLogger(component string) *Logger {
	logger, err := lm.GetLogger(component)
	if err == nil {
		return logger
	}

	lm.mu.Lock()
	defer lm.mu.Unlock()
	logger = newConsoleLogger(component)
	logger.SetLevels(lm.console, lm.file)
	logger.Warn("файловый лог недоступен: %v", err)
	return logger
}

// SetDefaultLevels задаёт уровни для всех существующих и будущих логгеров
func (lm *LoggerManager) SetDefaultLevels(consoleLevel, fileLevel LogLevel) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	lm.console, lm.file = consoleLevel, fileLevel
	for _, logger := range lm.loggers {
		logger.SetLevels(consoleLevel, fileLevel)
	}
}

// GetComponentLogger возвращает логгер компонента из глобального менеджера
func GetComponentLogger(component string) *Logger {
	return GetLoggerManager().MustGetLogger(component)
}

func GetWorldLogger() *Logger {
	return GetComponentLogger("world")
}

func GetStorageLogger() *Logger {
	return GetComponentLogger("storage")
}
