package logger

// MonitorLogger adapts the package-level zerolog Logger to
// monitor.Logger's four-level interface (spec §6).
type MonitorLogger struct{}

func NewMonitorLogger() MonitorLogger { return MonitorLogger{} }

func (MonitorLogger) Error(msg string, fields map[string]any) {
	ev := Logger.Error()
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	ev.Msg(msg)
}

func (MonitorLogger) Warning(msg string, fields map[string]any) {
	ev := Logger.Warn()
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	ev.Msg(msg)
}

// Notice maps to zerolog's Info level with a notice=true hint field,
// since zerolog has no native NOTICE level.
func (MonitorLogger) Notice(msg string, fields map[string]any) {
	ev := Logger.Info().Bool("notice", true)
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	ev.Msg(msg)
}

func (MonitorLogger) Debug(msg string, fields map[string]any) {
	ev := Logger.Debug()
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	ev.Msg(msg)
}
