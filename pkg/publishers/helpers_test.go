package publishers

import (
	"encoding/json"
	"sync"
)

type logEntry struct {
	level string
	msg   string
	key   string
	obj   interface{}
}

// recordingLogger captures log calls for assertions.
type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (r *recordingLogger) add(level, msg, key string, obj any) {
	r.mu.Lock()
	r.entries = append(r.entries, logEntry{level: level, msg: msg, key: key, obj: obj})
	r.mu.Unlock()
}

func (r *recordingLogger) InfoObj(msg, key string, obj any)  { r.add("info", msg, key, obj) }
func (r *recordingLogger) DebugObj(msg, key string, obj any) { r.add("debug", msg, key, obj) }
func (r *recordingLogger) WarnObj(msg, key string, obj any)  { r.add("warn", msg, key, obj) }
func (r *recordingLogger) ErrorObj(msg, key string, obj any) { r.add("error", msg, key, obj) }

func testEvent() Event {
	return NewEvent("run-1", Source{
		ProjectID: "abc123",
		Dataset:   "production",
		QueryID:   "posts",
		QueryName: "Latest posts",
	}, "f00d", 7, json.RawMessage(`[{"_id":"p1"}]`))
}
