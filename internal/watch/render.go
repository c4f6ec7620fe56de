package watch

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

var (
	styleOK      = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	styleFailed  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	styleRunning = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Bold(true)
	styleSkipped = lipgloss.NewStyle().Foreground(lipgloss.Color("#999999"))
	styleWarn    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801")).Bold(true)
	styleDetail  = lipgloss.NewStyle().Foreground(lipgloss.Color("#A0AEC0"))
	styleHeader  = lipgloss.NewStyle().Bold(true)
)

// Renderer writes feed messages as styled lines. It is safe for concurrent
// use.
type Renderer struct {
	mu  sync.Mutex
	out io.Writer
}

// NewRenderer creates a renderer writing to out.
func NewRenderer(out io.Writer) *Renderer {
	return &Renderer{out: out}
}

// Lifecycle renders one lifecycle event.
func (r *Renderer) Lifecycle(m map[string]any) {
	r.write(FormatEvent(m))
}

// Snapshot renders a pool snapshot.
func (r *Renderer) Snapshot(m map[string]any) {
	r.write(FormatSnapshot(m))
}

func (r *Renderer) write(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, line)
}

// FormatEvent renders a lifecycle payload on one line.
func FormatEvent(m map[string]any) string {
	kind := str(m, "kind")
	planRef := fmt.Sprintf("%s#%s", str(m, "plan"), num(m, "execution_id"))

	var label string
	switch kind {
	case "plan_started":
		label = styleRunning.Render("PLAN START")
	case "plan_finished":
		label = statusStyle(str(m, "status")).Render("PLAN " + strings.ToUpper(str(m, "status")))
	case "stage_started":
		label = styleRunning.Render("STAGE START")
	case "stage_skipped":
		label = styleSkipped.Render("STAGE SKIP")
	case "stage_finished":
		label = statusStyle(str(m, "status")).Render("STAGE " + strings.ToUpper(str(m, "status")))
	case "terminating":
		return styleWarn.Render("TERMINATING") + " " + str(m, "executor")
	default:
		label = styleDetail.Render(kind)
	}

	parts := []string{label, planRef}
	if stage := str(m, "stage"); stage != "" {
		parts = append(parts, fmt.Sprintf("[%s] %s (%s)", num(m, "stage_index"), stage, str(m, "stage_kind")))
	}
	if _, ok := m["duration_ms"]; ok {
		parts = append(parts, styleDetail.Render(num(m, "duration_ms")+"ms"))
	}
	if errText := str(m, "error"); errText != "" {
		parts = append(parts, styleFailed.Render(errText))
	}
	return strings.Join(parts, " ")
}

// FormatSnapshot renders a snapshot payload as a short block.
func FormatSnapshot(m map[string]any) string {
	var b strings.Builder

	poolView, _ := m["pool"].(map[string]any)
	fmt.Fprintf(&b, "%s %s  busy %s/%s  queued %s  done %s  failed %s",
		styleHeader.Render("POOL"), str(poolView, "id"),
		num(poolView, "busy"), num(poolView, "size"), num(poolView, "queued"),
		num(poolView, "completed"), num(poolView, "failed"))

	if nodes, ok := m["numa"].(map[string]any); ok && len(nodes) > 0 {
		keys := make([]string, 0, len(nodes))
		for k := range nodes {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool {
			a, _ := strconv.Atoi(keys[i])
			c, _ := strconv.Atoi(keys[j])
			return a < c
		})
		cells := make([]string, len(keys))
		for i, k := range keys {
			node, _ := nodes[k].(map[string]any)
			cells[i] = fmt.Sprintf("n%s %s/%s", k, num(node, "busy"), num(node, "total"))
		}
		fmt.Fprintf(&b, "\n%s %s", styleHeader.Render("NUMA"), strings.Join(cells, "  "))
	}

	if active, ok := m["active"].([]any); ok {
		for _, a := range active {
			plan, _ := a.(map[string]any)
			fmt.Fprintf(&b, "\n  %s %s#%s", styleRunning.Render(str(plan, "phase")), str(plan, "plan"), num(plan, "execution_id"))
		}
	}
	return b.String()
}

func statusStyle(status string) lipgloss.Style {
	switch status {
	case "succeeded":
		return styleOK
	case "succeeded_with_cleanup_failure":
		return styleWarn
	case "failed":
		return styleFailed
	default:
		return styleDetail
	}
}

func str(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

// num formats a JSON number, which the client decodes as float64.
func num(m map[string]any, key string) string {
	if m == nil {
		return "0"
	}
	switch v := m[key].(type) {
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	default:
		return "0"
	}
}
