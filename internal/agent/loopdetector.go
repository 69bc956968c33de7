package agent

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"sync"
)

const loopHistorySize = 20

// LoopDetector watches the stream of tool calls and flags when the model
// is repeating itself instead of making progress.
type LoopDetector struct {
	mu      sync.Mutex
	history []callRecord
}

type callRecord struct {
	hash     string // tool + normalized args + result prefix
	toolName string
	isError  bool
}

// LoopInfo describes a detected repetition.
type LoopInfo struct {
	ToolName  string
	Count     int
	IsError   bool // every call in the run failed
	IsSuccess bool // every call in the run succeeded (still stuck)
}

func NewLoopDetector() *LoopDetector {
	return &LoopDetector{}
}

// normalizeArgs re-marshals JSON args so key order does not affect the hash.
func normalizeArgs(args string) string {
	var data map[string]any
	if err := json.Unmarshal([]byte(args), &data); err != nil {
		return args
	}
	normalized, err := json.Marshal(sortedMap(data))
	if err != nil {
		return args
	}
	return string(normalized)
}

func sortedMap(m map[string]any) map[string]any {
	result := make(map[string]any, len(m))
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if nested, ok := m[k].(map[string]any); ok {
			result[k] = sortedMap(nested)
		} else {
			result[k] = m[k]
		}
	}
	return result
}

// Record adds a completed tool call to the history.
func (ld *LoopDetector) Record(toolName, args, result string, isError bool) {
	ld.mu.Lock()
	defer ld.mu.Unlock()

	resultPrefix := result
	if len(resultPrefix) > 200 {
		resultPrefix = resultPrefix[:200]
	}

	h := sha256.New()
	h.Write([]byte(toolName))
	h.Write([]byte(normalizeArgs(args)))
	h.Write([]byte(resultPrefix))
	hash := hex.EncodeToString(h.Sum(nil))[:16]

	ld.history = append(ld.history, callRecord{
		hash:     hash,
		toolName: toolName,
		isError:  isError,
	})
	if len(ld.history) > loopHistorySize {
		ld.history = ld.history[len(ld.history)-loopHistorySize:]
	}
}

// DetectLoop reports a loop when the last threshold calls are identical in
// tool, arguments and result. Catches both failing and succeeding repeats.
func (ld *LoopDetector) DetectLoop(threshold int) *LoopInfo {
	ld.mu.Lock()
	defer ld.mu.Unlock()

	if len(ld.history) < threshold {
		return nil
	}
	recent := ld.history[len(ld.history)-threshold:]

	allErrors := true
	allSuccesses := true
	for _, r := range recent {
		if r.hash != recent[0].hash {
			return nil
		}
		if r.isError {
			allSuccesses = false
		} else {
			allErrors = false
		}
	}

	return &LoopInfo{
		ToolName:  recent[0].toolName,
		Count:     threshold,
		IsError:   allErrors,
		IsSuccess: allSuccesses,
	}
}

// DetectErrorLoop reports when the same tool has failed threshold times in a
// row, even with varying arguments.
func (ld *LoopDetector) DetectErrorLoop(threshold int) *LoopInfo {
	ld.mu.Lock()
	defer ld.mu.Unlock()

	if len(ld.history) < threshold {
		return nil
	}
	recent := ld.history[len(ld.history)-threshold:]
	for _, r := range recent {
		if r.toolName != recent[0].toolName || !r.isError {
			return nil
		}
	}

	return &LoopInfo{
		ToolName: recent[0].toolName,
		Count:    threshold,
		IsError:  true,
	}
}

// Reset clears the history, typically on new user input.
func (ld *LoopDetector) Reset() {
	ld.mu.Lock()
	defer ld.mu.Unlock()
	ld.history = nil
}
