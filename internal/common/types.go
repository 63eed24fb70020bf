package common

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

type Done struct{}

type Cache interface {
	Set(key string, value string, ttl time.Duration) (err error)
	SetIfNotExists(key string, value string, ttl time.Duration) (isSet bool, err error)
	Get(key string) (value string, err error)
	Del(key string) (err error)
}

type ServiceLog struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

func ServiceLogf(level LogLevel, text string, f ...any) ServiceLog {
	return ServiceLog{
		Level:   string(level),
		Message: fmt.Sprintf(text, f...),
	}
}

func StartServiceLogLoop(serviceLogs chan ServiceLog) {
	go func() {
		for {
			serviceLog, ok := <-serviceLogs
			if !ok {
				return
			}
			log := logrus.Info
			switch LogLevel(serviceLog.Level) {
			case LogLevelTrace:
				log = logrus.Trace
			case LogLevelDebug:
				log = logrus.Debug
			case LogLevelInfo:
				log = logrus.Info
			case LogLevelWarn:
				log = logrus.Warn
			case LogLevelError:
				log = logrus.Error
			}
			log(serviceLog.Message)
		}
	}()
}
