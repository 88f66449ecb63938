package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"aidermux/internal/logging"
)

// Filename is searched for in the working directory first, then the home
// directory. A new file is created in the home directory when neither exists.
const Filename = ".aidermux.yml"

const (
	DefaultSidepanePercentWidth = 20
	DefaultThemeName            = "light"
	DefaultLLMModel             = "gpt-4o-mini"
	DefaultLLMBaseURL           = "https://api.openai.com/v1/chat/completions"
	DefaultTextEditor           = "nano"
	DefaultSendInputDelayMS     = 200
)

// PlanProgress tracks how far a plan has been driven into Aider.
type PlanProgress struct {
	LastAiderStep *int `yaml:"last_aider_step,omitempty"`
}

// SessionSettings is the per-managed-session sub-object.
type SessionSettings struct {
	ActivePlanName         string                   `yaml:"active_plan_name,omitempty"`
	PlanPromptOverridePath string                   `yaml:"plan_prompt_override_path,omitempty"`
	PlanProgress           map[string]*PlanProgress `yaml:"plan_progress,omitempty"`
}

// Settings is the full on-disk document. Field order here is the order keys
// are written back in.
type Settings struct {
	SidepanePercentWidth   int                         `yaml:"sidepane_percent_width"`
	ThemeName              string                      `yaml:"theme_name"`
	LLMModel               string                      `yaml:"llm_model"`
	LLMAPIKey              string                      `yaml:"llm_api_key,omitempty"`
	LLMBaseURL             string                      `yaml:"llm_base_url"`
	PlanPromptOverridePath string                      `yaml:"plan_prompt_override_path,omitempty"`
	TextEditor             string                      `yaml:"text_editor,omitempty"`
	SendInputDelayMS       int                         `yaml:"send_input_delay_ms"`
	ManagedSessions        map[string]*SessionSettings `yaml:"managed_sessions"`
}

func defaultSettings() Settings {
	return Settings{
		SidepanePercentWidth: DefaultSidepanePercentWidth,
		ThemeName:            DefaultThemeName,
		LLMModel:             DefaultLLMModel,
		LLMBaseURL:           DefaultLLMBaseURL,
		TextEditor:           DefaultTextEditor,
		SendInputDelayMS:     DefaultSendInputDelayMS,
		ManagedSessions:      map[string]*SessionSettings{},
	}
}

// Store owns the loaded settings and rewrites the whole file on every
// mutation. A single instance is created at startup and passed to the
// components that need it.
type Store struct {
	path     string // empty when no config file existed at load time
	settings Settings
	log      *logging.Logger
	writes   int
}

// Find returns the path of the first existing config file on the search
// path, or "" when none exists.
func Find() string {
	if cwd, err := os.Getwd(); err == nil {
		p := filepath.Join(cwd, Filename)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		p := filepath.Join(home, Filename)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Load locates and parses the config file. Malformed files and wrong-typed
// values never fail the load: each recognized key falls back to its default
// with a logged warning.
func Load(log *logging.Logger) *Store {
	return LoadPath(Find(), log)
}

// LoadPath is Load with an explicit file path; path == "" loads pure
// defaults.
func LoadPath(path string, log *logging.Logger) *Store {
	s := &Store{path: path, settings: defaultSettings(), log: log}

	if path == "" {
		return s
	}
	data, err := os.ReadFile(path)
	if err != nil {
		log.Warn("could not read config file, using defaults", map[string]interface{}{"path": path, "error": err.Error()})
		return s
	}
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		log.Warn("could not parse config file, using defaults", map[string]interface{}{"path": path, "error": err.Error()})
		return s
	}
	s.coerce(raw)
	return s
}

// coerce applies the raw document onto the defaulted settings, validating
// every recognized key field by field.
func (s *Store) coerce(raw map[string]interface{}) {
	if v, ok := raw["sidepane_percent_width"]; ok {
		if n, ok := asInt(v); ok {
			s.settings.SidepanePercentWidth = n
		} else {
			s.warnKey("sidepane_percent_width", "not an integer")
		}
	}
	if v, ok := raw["theme_name"]; ok {
		if str, ok := v.(string); ok {
			s.settings.ThemeName = str
		} else {
			s.warnKey("theme_name", "not a string")
		}
	}
	if v, ok := raw["llm_model"]; ok && v != nil {
		if str, ok := v.(string); ok && strings.TrimSpace(str) != "" {
			s.settings.LLMModel = str
		} else {
			s.warnKey("llm_model", "not a non-empty string")
		}
	}
	if v, ok := raw["llm_api_key"]; ok && v != nil {
		if str, ok := v.(string); ok {
			s.settings.LLMAPIKey = str
		} else {
			s.warnKey("llm_api_key", "not a string or null")
		}
	}
	if v, ok := raw["llm_base_url"]; ok && v != nil {
		if str, ok := v.(string); ok && strings.TrimSpace(str) != "" {
			s.settings.LLMBaseURL = str
		} else {
			s.warnKey("llm_base_url", "not a non-empty string")
		}
	}
	if v, ok := raw["plan_prompt_override_path"]; ok && v != nil {
		if str, ok := v.(string); ok {
			s.settings.PlanPromptOverridePath = s.resolvePath(str)
		} else {
			s.warnKey("plan_prompt_override_path", "not a string or null")
		}
	}
	if v, ok := raw["text_editor"]; ok {
		switch tv := v.(type) {
		case string:
			// Empty string means explicitly unconfigured.
			s.settings.TextEditor = tv
		case nil:
			s.settings.TextEditor = ""
		default:
			s.warnKey("text_editor", "not a string or null")
		}
	}
	if v, ok := raw["send_input_delay_ms"]; ok {
		if n, ok := asInt(v); ok && n >= 0 {
			s.settings.SendInputDelayMS = n
		} else {
			s.warnKey("send_input_delay_ms", "not a non-negative integer")
		}
	}

	s.coerceSessions(raw["managed_sessions"])
}

func (s *Store) coerceSessions(v interface{}) {
	switch sessions := v.(type) {
	case nil:
	case []interface{}:
		// Legacy format: a bare list of session names. Upgrade in place.
		s.log.Info("migrating managed_sessions from list to mapping format", map[string]interface{}{"path": s.path})
		for _, item := range sessions {
			if name, ok := item.(string); ok {
				s.settings.ManagedSessions[name] = &SessionSettings{}
			}
		}
	case map[string]interface{}:
		for name, rawSession := range sessions {
			entry, ok := rawSession.(map[string]interface{})
			if !ok {
				if rawSession != nil {
					s.log.Warn("session settings is not a mapping, resetting", map[string]interface{}{"session": name})
				}
				s.settings.ManagedSessions[name] = &SessionSettings{}
				continue
			}
			s.settings.ManagedSessions[name] = s.coerceSession(name, entry)
		}
	default:
		s.warnKey("managed_sessions", "not a mapping")
	}
}

func (s *Store) coerceSession(name string, raw map[string]interface{}) *SessionSettings {
	out := &SessionSettings{}
	if v, ok := raw["active_plan_name"]; ok && v != nil {
		if str, ok := v.(string); ok {
			out.ActivePlanName = str
		} else {
			s.log.Warn("active_plan_name is not a string, ignoring", map[string]interface{}{"session": name})
		}
	}
	if v, ok := raw["plan_prompt_override_path"]; ok && v != nil {
		if str, ok := v.(string); ok {
			out.PlanPromptOverridePath = s.resolvePath(str)
		} else {
			s.log.Warn("session plan_prompt_override_path is not a string or null, ignoring", map[string]interface{}{"session": name})
		}
	}
	if v, ok := raw["plan_progress"]; ok && v != nil {
		progress, ok := v.(map[string]interface{})
		if !ok {
			s.log.Warn("plan_progress is not a mapping, resetting", map[string]interface{}{"session": name})
			return out
		}
		for plan, rawEntry := range progress {
			entry, ok := rawEntry.(map[string]interface{})
			if !ok {
				s.log.Warn("plan progress entry is not a mapping, removing", map[string]interface{}{"session": name, "plan": plan})
				continue
			}
			pp := &PlanProgress{}
			if sv, ok := entry["last_aider_step"]; ok && sv != nil {
				if n, ok := asInt(sv); ok {
					pp.LastAiderStep = &n
				} else {
					s.log.Warn("last_aider_step is not an integer, resetting", map[string]interface{}{"session": name, "plan": plan})
				}
			}
			if out.PlanProgress == nil {
				out.PlanProgress = map[string]*PlanProgress{}
			}
			out.PlanProgress[plan] = pp
		}
	}
	return out
}

func (s *Store) warnKey(key, problem string) {
	s.log.Warn(fmt.Sprintf("config value for %q is %s, using default", key, problem), map[string]interface{}{"path": s.path})
}

// resolvePath expands ~ and makes relative paths absolute against the config
// file's directory, matching how a human edits paths in the file.
func (s *Store) resolvePath(p string) string {
	if p == "" {
		return ""
	}
	if strings.HasPrefix(p, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, strings.TrimPrefix(p[1:], string(filepath.Separator)))
		}
	}
	if filepath.IsAbs(p) {
		return p
	}
	base := ""
	if s.path != "" {
		base = filepath.Dir(s.path)
	} else if cwd, err := os.Getwd(); err == nil {
		base = cwd
	}
	return filepath.Join(base, p)
}

func asInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	default:
		return 0, false
	}
}

// save rewrites the whole file. Failures are logged, never surfaced to the
// UI: the tool stays usable with an unwritable config.
func (s *Store) save() {
	s.writes++
	path := s.path
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			s.log.Error("cannot determine home directory for config file", map[string]interface{}{"error": err.Error()})
			return
		}
		path = filepath.Join(home, Filename)
		s.log.Info("creating new config file", map[string]interface{}{"path": path})
		s.path = path
	}
	data, err := yaml.Marshal(&s.settings)
	if err != nil {
		s.log.Error("could not serialize config", map[string]interface{}{"error": err.Error()})
		return
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		s.log.Error("could not save config file", map[string]interface{}{"path": path, "error": err.Error()})
	}
}

func (s *Store) SidepanePercentWidth() int { return s.settings.SidepanePercentWidth }
func (s *Store) Theme() string             { return s.settings.ThemeName }
func (s *Store) LLMModel() string          { return s.settings.LLMModel }
func (s *Store) LLMAPIKey() string         { return s.settings.LLMAPIKey }
func (s *Store) LLMBaseURL() string        { return s.settings.LLMBaseURL }
func (s *Store) TextEditor() string        { return s.settings.TextEditor }

// SendDelay is the settle delay between the prompt body and the closing tag
// of a multi-line send.
func (s *Store) SendDelay() time.Duration {
	return time.Duration(s.settings.SendInputDelayMS) * time.Millisecond
}

func (s *Store) SetTheme(name string) {
	if s.settings.ThemeName == name {
		return
	}
	s.settings.ThemeName = name
	s.save()
}

func (s *Store) SetLLMModel(model string) {
	if s.settings.LLMModel == model {
		return
	}
	s.settings.LLMModel = model
	s.save()
}

func (s *Store) SetLLMAPIKey(key string) {
	if s.settings.LLMAPIKey == key {
		return
	}
	s.settings.LLMAPIKey = key
	s.save()
}

// PromptOverridePath returns the plan-generation prompt override for a
// session, preferring the session-specific path over the global one. Both
// were resolved to absolute paths at load time.
func (s *Store) PromptOverridePath(session string) string {
	if session != "" {
		if ss, ok := s.settings.ManagedSessions[session]; ok && ss != nil && ss.PlanPromptOverridePath != "" {
			return ss.PlanPromptOverridePath
		}
	}
	return s.settings.PlanPromptOverridePath
}

// Sessions returns the managed session names in sorted order.
func (s *Store) Sessions() []string {
	names := make([]string, 0, len(s.settings.ManagedSessions))
	for name := range s.settings.ManagedSessions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Store) HasSession(name string) bool {
	_, ok := s.settings.ManagedSessions[name]
	return ok
}

func (s *Store) AddSession(name string) {
	if _, ok := s.settings.ManagedSessions[name]; ok {
		return
	}
	s.settings.ManagedSessions[name] = &SessionSettings{}
	s.save()
}

func (s *Store) RemoveSession(name string) {
	if _, ok := s.settings.ManagedSessions[name]; !ok {
		return
	}
	delete(s.settings.ManagedSessions, name)
	s.save()
}

// RenameSession moves the settings sub-object from old to new. The live tmux
// session is renamed separately by the caller.
func (s *Store) RenameSession(oldName, newName string) {
	if oldName == newName {
		return
	}
	ss, ok := s.settings.ManagedSessions[oldName]
	if !ok {
		s.AddSession(newName)
		return
	}
	delete(s.settings.ManagedSessions, oldName)
	s.settings.ManagedSessions[newName] = ss
	s.save()
}

func (s *Store) ensureSession(name string) *SessionSettings {
	ss, ok := s.settings.ManagedSessions[name]
	if !ok || ss == nil {
		ss = &SessionSettings{}
		s.settings.ManagedSessions[name] = ss
	}
	return ss
}

func (s *Store) ActivePlan(session string) string {
	if ss, ok := s.settings.ManagedSessions[session]; ok && ss != nil {
		return ss.ActivePlanName
	}
	return ""
}

// SetActivePlan records the active plan for a session; an empty plan name
// clears it.
func (s *Store) SetActivePlan(session, plan string) {
	if session == "" {
		s.log.Warn("cannot set active plan without a session name", nil)
		return
	}
	ss := s.ensureSession(session)
	if ss.ActivePlanName == plan {
		return
	}
	ss.ActivePlanName = plan
	s.save()
}

// LastStep returns the watermark for (session, plan).
func (s *Store) LastStep(session, plan string) (int, bool) {
	ss, ok := s.settings.ManagedSessions[session]
	if !ok || ss == nil {
		return 0, false
	}
	pp, ok := ss.PlanProgress[plan]
	if !ok || pp == nil || pp.LastAiderStep == nil {
		return 0, false
	}
	return *pp.LastAiderStep, true
}

// SetLastStep persists the watermark; writing the value already stored is a
// no-op that avoids touching the disk.
func (s *Store) SetLastStep(session, plan string, step int) {
	if session == "" || plan == "" {
		s.log.Warn("session or plan name missing for watermark update", nil)
		return
	}
	ss := s.ensureSession(session)
	if ss.PlanProgress == nil {
		ss.PlanProgress = map[string]*PlanProgress{}
	}
	pp, ok := ss.PlanProgress[plan]
	if !ok || pp == nil {
		pp = &PlanProgress{}
		ss.PlanProgress[plan] = pp
	}
	if pp.LastAiderStep != nil && *pp.LastAiderStep == step {
		return
	}
	v := step
	pp.LastAiderStep = &v
	s.save()
}

func (s *Store) ClearLastStep(session, plan string) {
	ss, ok := s.settings.ManagedSessions[session]
	if !ok || ss == nil {
		return
	}
	pp, ok := ss.PlanProgress[plan]
	if !ok || pp == nil || pp.LastAiderStep == nil {
		return
	}
	pp.LastAiderStep = nil
	s.save()
}
