// Package logutil provides leveled helpers over *log.Logger. Output is plain
// text with a level prefix, or one JSON object per line when JSON mode is on.
package logutil

import (
    "encoding/json"
    "fmt"
    "log"
    "os"
    "sync/atomic"
    "time"
)

var (
    jsonMode  atomic.Bool
    debugMode atomic.Bool
)

func init() {
    if os.Getenv("HPS_LOG_JSON") == "1" || os.Getenv("HPS_LOG_FORMAT") == "json" {
        jsonMode.Store(true)
    }
    if os.Getenv("HPS_LOG_DEBUG") == "1" {
        debugMode.Store(true)
    }
}

// SetJSON switches between text and JSON output.
func SetJSON(enabled bool) { jsonMode.Store(enabled) }

// SetDebug enables Debugf output.
func SetDebug(enabled bool) { debugMode.Store(enabled) }

func Debugf(l *log.Logger, f string, args ...any) {
    if !debugMode.Load() { return }
    logf(l, "debug", f, args...)
}
func Infof(l *log.Logger, f string, args ...any)  { logf(l, "info", f, args...) }
func Warnf(l *log.Logger, f string, args ...any)  { logf(l, "warn", f, args...) }
func Errorf(l *log.Logger, f string, args ...any) { logf(l, "error", f, args...) }

var levelPrefix = map[string]string{
    "debug": "DEBUG ",
    "info":  "INFO ",
    "warn":  "WARN ",
    "error": "ERROR ",
}

func logf(l *log.Logger, level, f string, args ...any) {
    if l == nil { l = log.Default() }
    msg := fmt.Sprintf(f, args...)
    if jsonMode.Load() {
        evt := map[string]any{
            "ts":    time.Now().UTC().Format(time.RFC3339Nano),
            "level": level,
            "msg":   msg,
        }
        if p := l.Prefix(); p != "" { evt["component"] = p }
        b, _ := json.Marshal(evt)
        l.Println(string(b))
        return
    }
    _ = l.Output(3, levelPrefix[level]+msg)
}
