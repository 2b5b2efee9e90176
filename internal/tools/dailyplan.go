package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/toolbridge/toolbridge/internal/security"
)

// DailyPlan manages markdown day files laid out as <root>/YYYY/MM/DD.md.
// Every explicit path argument is resolved through a PathGuard rooted at the
// plan directory, so the dp_* tools can never be pointed at arbitrary files.
type DailyPlan struct {
	root  string
	guard *security.PathGuard
	now   func() time.Time
}

func NewDailyPlan(root string) (*DailyPlan, error) {
	guard, err := security.NewPathGuard(root)
	if err != nil {
		return nil, err
	}
	return &DailyPlan{root: guard.Root(), guard: guard, now: time.Now}, nil
}

// Task checkbox marks and their status names.
var taskStatusByMark = map[string]string{
	"[ ]": "todo",
	"[x]": "done",
	"[~]": "partial",
	"[!]": "cancelled",
	"[>]": "in_progress",
	"[?]": "need_help",
}

var markByTaskStatus = map[string]string{
	"todo":        "[ ]",
	"done":        "[x]",
	"partial":     "[~]",
	"cancelled":   "[!]",
	"in_progress": "[>]",
	"need_help":   "[?]",
}

var taskMarkRe = regexp.MustCompile(`^\s*-\s*(\[(?: |[xX]|~|!|>|\?)\])\s*(.*)$`)

const dayTemplate = `# 📅 今日计划

**☀️ 天气：晴朗，温度 25~32°C，中国·上海**

## 🎯 今日重点任务

### 学习与成长
- [ ] 示例任务：阅读30分钟

## 🌞 生活安排

### 用餐时间
- [ ] 早餐 (8:00 - 8:30)
- [ ] 午餐 (12:00 - 12:30)
- [ ] 晚餐 (18:00 - 18:30)

## 🌙 晚间总结

### 📝 今日总结 (21:00 - 21:30)
- [ ] 回顾今日完成情况

### 📋 明日计划 (21:30 - 22:00)
- [ ] 制定明日计划

## 📊 今日目标

### 🎯 主要目标
- 保持良好作息

## 💡 学习笔记
`

func (p *DailyPlan) dayPath(t time.Time) string {
	return filepath.Join(p.root, t.Format("2006"), t.Format("01"), t.Format("02")+".md")
}

// resolveDay maps an optional explicit path to a guarded absolute path,
// defaulting to today's file.
func (p *DailyPlan) resolveDay(path string) (string, error) {
	if path == "" {
		return p.dayPath(p.now()), nil
	}
	return p.guard.Resolve(path)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func loadPlanLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, classifyFSError(err, path)
	}
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n"), nil
}

func savePlanLines(path string, lines []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return classifyFSError(err, path)
	}
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		return classifyFSError(err, path)
	}
	return nil
}

func insertPlanLine(lines []string, at int, line string) []string {
	lines = append(lines, "")
	copy(lines[at+1:], lines[at:])
	lines[at] = line
	return lines
}

type planSection struct {
	title string
	start int
	end   int
}

// parsePlanSections splits the file on "## " headings; each section runs to
// the line before the next heading.
func parsePlanSections(lines []string) []planSection {
	var sections []planSection
	for i, line := range lines {
		if !strings.HasPrefix(line, "## ") {
			continue
		}
		if n := len(sections); n > 0 {
			sections[n-1].end = i - 1
		}
		title := strings.TrimSpace(strings.TrimLeft(line, "#"))
		sections = append(sections, planSection{title: title, start: i, end: len(lines) - 1})
	}
	return sections
}

func findPlanSection(lines []string, titlePrefix string) (planSection, bool) {
	for _, sec := range parsePlanSections(lines) {
		if strings.HasPrefix(sec.title, titlePrefix) {
			return sec, true
		}
	}
	return planSection{}, false
}

type planTask struct {
	LineIndex  int    `json:"line_index"`
	Raw        string `json:"raw"`
	StatusMark string `json:"status_mark"`
	Status     string `json:"status"`
	Text       string `json:"text"`
	Section    string `json:"section"`
	Subsection string `json:"subsection,omitempty"`
}

func planTasksIn(lines []string, sec planSection) []planTask {
	tasks := []planTask{}
	subsection := ""
	for i := sec.start; i <= sec.end && i < len(lines); i++ {
		line := lines[i]
		if strings.HasPrefix(line, "### ") {
			subsection = strings.TrimSpace(strings.TrimLeft(line, "#"))
			continue
		}
		m := taskMarkRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		mark, text := m[1], strings.TrimSpace(m[2])
		status, ok := taskStatusByMark[strings.ToLower(mark)]
		if !ok {
			status = "todo"
		}
		tasks = append(tasks, planTask{
			LineIndex:  i,
			Raw:        line,
			StatusMark: mark,
			Status:     status,
			Text:       text,
			Section:    sec.title,
			Subsection: subsection,
		})
	}
	return tasks
}

// lastContentLine finds the insertion point after the last non-blank line of
// a section.
func lastContentLine(lines []string, sec planSection) int {
	for i := sec.end; i > sec.start; i-- {
		if i < len(lines) && strings.TrimSpace(lines[i]) != "" {
			return i + 1
		}
	}
	return sec.end
}

func planJSON(out map[string]interface{}) (string, error) {
	b, err := json.Marshal(out)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// templateSource picks the latest existing day file of the current month as
// the template for a new day, falling back to the builtin skeleton.
func (p *DailyPlan) templateSource() string {
	monthDir := filepath.Dir(p.dayPath(p.now()))
	entries, err := os.ReadDir(monthDir)
	if err != nil {
		return ""
	}
	latest := ""
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".md") {
			latest = e.Name() // ReadDir is name-sorted
		}
	}
	if latest == "" {
		return ""
	}
	return filepath.Join(monthDir, latest)
}

// TodayPathTool reports where today's plan file lives and whether it exists.
func (p *DailyPlan) TodayPathTool() Tool {
	return Tool{
		Name:        "dp_get_today_path",
		Description: "Get the path of today's daily plan file and whether it exists.",
		InputSchema: map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{},
			"required":   []string{},
		},
		Execute: func(ctx context.Context, input map[string]interface{}) (string, error) {
			now := p.now()
			path := p.dayPath(now)
			return planJSON(map[string]interface{}{
				"date":   now.Format("2006-01-02"),
				"path":   path,
				"exists": fileExists(path),
			})
		},
	}
}

// CreateTodayTool creates today's plan file from the latest same-month file,
// or from the builtin template when the month is empty.
func (p *DailyPlan) CreateTodayTool() Tool {
	return Tool{
		Name:        "dp_create_today",
		Description: "Create today's daily plan file from a template. Skipped when it already exists unless force is set.",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"force": map[string]interface{}{
					"type":        "boolean",
					"description": "Overwrite an existing file",
					"default":     false,
				},
			},
			"required": []string{},
		},
		Execute: func(ctx context.Context, input map[string]interface{}) (string, error) {
			force, _ := input["force"].(bool)
			path := p.dayPath(p.now())
			if fileExists(path) && !force {
				return planJSON(map[string]interface{}{
					"created": false,
					"path":    path,
					"reason":  "exists",
				})
			}
			if src := p.templateSource(); src != "" {
				lines, err := loadPlanLines(src)
				if err != nil {
					return "", err
				}
				if len(lines) > 0 && strings.HasPrefix(lines[0], "# ") {
					lines[0] = "# 📅 今日计划"
				}
				if err := savePlanLines(path, lines); err != nil {
					return "", err
				}
				return planJSON(map[string]interface{}{
					"created": true,
					"path":    path,
					"source":  src,
				})
			}
			if err := savePlanLines(path, strings.Split(dayTemplate, "\n")); err != nil {
				return "", err
			}
			return planJSON(map[string]interface{}{
				"created": true,
				"path":    path,
				"source":  "fallback",
			})
		},
	}
}

// ReadDayTool parses a day file into sections and task items.
func (p *DailyPlan) ReadDayTool() Tool {
	return Tool{
		Name:        "dp_read_day",
		Description: "Read a daily plan file (today's by default) and return its sections and tasks.",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Optional explicit file path; today's file when omitted",
				},
			},
			"required": []string{},
		},
		Execute: func(ctx context.Context, input map[string]interface{}) (string, error) {
			optPath, _ := input["path"].(string)
			path, err := p.resolveDay(optPath)
			if err != nil {
				return "", err
			}
			if !fileExists(path) {
				return planJSON(map[string]interface{}{"exists": false, "path": path})
			}
			lines, err := loadPlanLines(path)
			if err != nil {
				return "", err
			}
			payload := []map[string]interface{}{}
			for _, sec := range parsePlanSections(lines) {
				payload = append(payload, map[string]interface{}{
					"title": sec.title,
					"range": []int{sec.start, sec.end},
					"tasks": planTasksIn(lines, sec),
				})
			}
			return planJSON(map[string]interface{}{
				"exists":   true,
				"path":     path,
				"sections": payload,
			})
		},
	}
}

// AddTaskTool appends a task line to a section matched by title prefix.
func (p *DailyPlan) AddTaskTool() Tool {
	return Tool{
		Name:        "dp_add_task",
		Description: "Append a task to a section of the daily plan, matched by title prefix.",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"section_title_prefix": map[string]interface{}{
					"type":        "string",
					"description": "Section title prefix, e.g. '🎯'",
				},
				"task_text": map[string]interface{}{
					"type":        "string",
					"description": "Task text",
				},
				"status": map[string]interface{}{
					"type":        "string",
					"description": "todo|done|partial|cancelled|in_progress|need_help",
					"default":     "todo",
				},
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Optional explicit file path",
				},
			},
			"required": []string{"section_title_prefix", "task_text"},
		},
		Execute: func(ctx context.Context, input map[string]interface{}) (string, error) {
			prefix, _ := input["section_title_prefix"].(string)
			taskText, _ := input["task_text"].(string)
			status, _ := input["status"].(string)
			optPath, _ := input["path"].(string)

			path, err := p.resolveDay(optPath)
			if err != nil {
				return "", err
			}
			if !fileExists(path) {
				return planJSON(map[string]interface{}{"inserted": false, "error": "not_found", "path": path})
			}
			lines, err := loadPlanLines(path)
			if err != nil {
				return "", err
			}
			sec, ok := findPlanSection(lines, prefix)
			if !ok {
				return planJSON(map[string]interface{}{"inserted": false, "error": "section_not_found"})
			}
			mark, ok := markByTaskStatus[status]
			if !ok {
				mark = "[ ]"
			}
			at := lastContentLine(lines, sec)
			lines = insertPlanLine(lines, at, "- "+mark+" "+taskText)
			if err := savePlanLines(path, lines); err != nil {
				return "", err
			}
			return planJSON(map[string]interface{}{"inserted": true, "line": at})
		},
	}
}

// SetTaskStatusTool rewrites the checkbox mark of a task matched by its exact
// text.
func (p *DailyPlan) SetTaskStatusTool() Tool {
	return Tool{
		Name:        "dp_set_task_status",
		Description: "Set the status of a task matched by exact text.",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"task_text": map[string]interface{}{
					"type":        "string",
					"description": "Exact task text to match",
				},
				"status": map[string]interface{}{
					"type":        "string",
					"description": "todo|done|partial|cancelled|in_progress|need_help",
				},
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Optional explicit file path",
				},
			},
			"required": []string{"task_text", "status"},
		},
		Execute: func(ctx context.Context, input map[string]interface{}) (string, error) {
			taskText, _ := input["task_text"].(string)
			status, _ := input["status"].(string)
			optPath, _ := input["path"].(string)

			path, err := p.resolveDay(optPath)
			if err != nil {
				return "", err
			}
			if !fileExists(path) {
				return planJSON(map[string]interface{}{"updated": false, "error": "not_found", "path": path})
			}
			lines, err := loadPlanLines(path)
			if err != nil {
				return "", err
			}
			idx := -1
			for i, line := range lines {
				m := taskMarkRe.FindStringSubmatch(line)
				if m != nil && strings.TrimSpace(m[2]) == taskText {
					idx = i
					break
				}
			}
			if idx < 0 {
				return planJSON(map[string]interface{}{"updated": false, "error": "task_not_found"})
			}
			m := taskMarkRe.FindStringSubmatch(lines[idx])
			mark, ok := markByTaskStatus[status]
			if !ok {
				mark = "[ ]"
			}
			lines[idx] = "- " + mark + " " + m[2]
			if err := savePlanLines(path, lines); err != nil {
				return "", err
			}
			return planJSON(map[string]interface{}{"updated": true, "line": idx, "new_status": status})
		},
	}
}

// AppendNoteTool appends a plain bullet to a section matched by title prefix.
func (p *DailyPlan) AppendNoteTool() Tool {
	return Tool{
		Name:        "dp_append_note",
		Description: "Append a plain note bullet to a section of the daily plan.",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"section_title_prefix": map[string]interface{}{
					"type":        "string",
					"description": "Section title prefix",
				},
				"note_line": map[string]interface{}{
					"type":        "string",
					"description": "Note content",
				},
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Optional explicit file path",
				},
			},
			"required": []string{"section_title_prefix", "note_line"},
		},
		Execute: func(ctx context.Context, input map[string]interface{}) (string, error) {
			prefix, _ := input["section_title_prefix"].(string)
			noteLine, _ := input["note_line"].(string)
			optPath, _ := input["path"].(string)

			path, err := p.resolveDay(optPath)
			if err != nil {
				return "", err
			}
			if !fileExists(path) {
				return planJSON(map[string]interface{}{"appended": false, "error": "not_found", "path": path})
			}
			lines, err := loadPlanLines(path)
			if err != nil {
				return "", err
			}
			sec, ok := findPlanSection(lines, prefix)
			if !ok {
				return planJSON(map[string]interface{}{"appended": false, "error": "section_not_found"})
			}
			at := lastContentLine(lines, sec)
			lines = insertPlanLine(lines, at, "- "+noteLine)
			if err := savePlanLines(path, lines); err != nil {
				return "", err
			}
			return planJSON(map[string]interface{}{"appended": true, "line": at})
		},
	}
}

// RolloverTool moves every unfinished task (todo, partial, in_progress) into
// tomorrow's file, creating it from the builtin template when missing.
func (p *DailyPlan) RolloverTool() Tool {
	return Tool{
		Name:        "dp_rollover_incomplete",
		Description: "Move unfinished tasks to tomorrow's plan file, creating it when needed.",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Optional source file path; today's file when omitted",
				},
			},
			"required": []string{},
		},
		Execute: func(ctx context.Context, input map[string]interface{}) (string, error) {
			optPath, _ := input["path"].(string)
			path, err := p.resolveDay(optPath)
			if err != nil {
				return "", err
			}
			if !fileExists(path) {
				return planJSON(map[string]interface{}{"moved": 0, "error": "not_found", "path": path})
			}
			lines, err := loadPlanLines(path)
			if err != nil {
				return "", err
			}
			var carried []string
			for _, line := range lines {
				m := taskMarkRe.FindStringSubmatch(line)
				if m == nil {
					continue
				}
				status := taskStatusByMark[strings.ToLower(m[1])]
				switch status {
				case "todo", "partial", "in_progress":
					carried = append(carried, strings.TrimSpace(m[2]))
				}
			}

			tomorrow := p.dayPath(p.now().AddDate(0, 0, 1))
			if !fileExists(tomorrow) {
				if err := savePlanLines(tomorrow, strings.Split(dayTemplate, "\n")); err != nil {
					return "", err
				}
			}
			next, err := loadPlanLines(tomorrow)
			if err != nil {
				return "", err
			}
			at := len(next)
			if sec, ok := findPlanSection(next, "🎯"); ok {
				at = sec.end + 1
			} else if sec, ok := findPlanSection(next, "今日重点任务"); ok {
				at = sec.end + 1
			}
			for _, text := range carried {
				next = insertPlanLine(next, at, "- [ ] "+text)
				at++
			}
			if err := savePlanLines(tomorrow, next); err != nil {
				return "", err
			}
			return planJSON(map[string]interface{}{
				"moved":         len(carried),
				"new_file_path": tomorrow,
			})
		},
	}
}

// Tools returns the seven dp_* tools in registration order.
func (p *DailyPlan) Tools() []Tool {
	return []Tool{
		p.TodayPathTool(),
		p.CreateTodayTool(),
		p.ReadDayTool(),
		p.AddTaskTool(),
		p.SetTaskStatusTool(),
		p.AppendNoteTool(),
		p.RolloverTool(),
	}
}
