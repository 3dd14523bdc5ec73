// Package logging provides key=value structured logging over the standard
// log package. Set FLOWPLANE_LOG_FORMAT=json for line-delimited JSON.
package logging

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
)

var (
	logFormatOnce sync.Once
	logAsJSON     bool
)

func jsonMode() bool {
	logFormatOnce.Do(func() {
		logAsJSON = strings.EqualFold(os.Getenv("FLOWPLANE_LOG_FORMAT"), "json")
	})
	return logAsJSON
}

// Info logs a message with key/value fields using a consistent prefix.
func Info(component, msg string, kv ...any) {
	emit("INFO", component, msg, kv...)
}

// Error logs an error message with key/value fields using a consistent prefix.
func Error(component, msg string, kv ...any) {
	emit("ERROR", component, msg, kv...)
}

func emit(level, component, msg string, kv ...any) {
	if jsonMode() {
		payload := map[string]any{
			"level":     level,
			"component": component,
			"msg":       msg,
		}
		if len(kv)%2 != 0 {
			kv = append(kv, "(missing)")
		}
		for i := 0; i < len(kv); i += 2 {
			payload[toString(kv[i])] = kv[i+1]
		}
		line, err := json.Marshal(payload)
		if err == nil {
			log.Print(string(line))
			return
		}
	}
	if level == "ERROR" {
		log.Printf("[%s] ERROR %s%s", strings.ToUpper(component), msg, formatFields(kv...))
		return
	}
	log.Printf("[%s] %s%s", strings.ToUpper(component), msg, formatFields(kv...))
}

func formatFields(kv ...any) string {
	if len(kv) == 0 {
		return ""
	}
	if len(kv)%2 != 0 {
		kv = append(kv, "(missing)")
	}
	var b strings.Builder
	for i := 0; i < len(kv); i += 2 {
		b.WriteString(" ")
		b.WriteString(strings.TrimSpace(toString(kv[i])))
		b.WriteString("=")
		b.WriteString(toString(kv[i+1]))
	}
	return b.String()
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	default:
		return strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(strings.TrimSpace(fmt.Sprintf("%v", t)), "\n", " "), "\t", " "))
	}
}
