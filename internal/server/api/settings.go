package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ayusman/handsynth/internal/mode"
	"github.com/ayusman/handsynth/internal/store"
)

// Preferences applies and persists runtime settings.
type Preferences interface {
	Policy() string
	SetPolicy(name string) error
	SkipTutorial() error
	ResetTutorial() error
}

// SettingsHandler serves /api/settings and /api/settings/{key}.
type SettingsHandler struct {
	store *store.Store
	prefs Preferences
}

// NewSettingsHandler creates a handler backed by prefs.
func NewSettingsHandler(s *store.Store, prefs Preferences) *SettingsHandler {
	return &SettingsHandler{store: s, prefs: prefs}
}

type settingsResponse struct {
	Policy            string   `json:"policy"`
	Policies          []string `json:"policies"`
	TutorialCompleted bool     `json:"tutorial_completed"`
}

type settingRequest struct {
	Value json.RawMessage `json:"value"`
}

func (h *SettingsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/settings"), "/")

	if key == "" {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.get(w, r)
		return
	}

	if r.Method != http.MethodPut {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req settingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Value) == 0 {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	switch key {
	case store.SettingPolicy:
		h.setPolicy(w, req.Value)
	case store.SettingTutorialCompleted:
		h.setTutorial(w, req.Value)
	default:
		writeError(w, http.StatusNotFound, "Unknown setting")
	}
}

func (h *SettingsHandler) get(w http.ResponseWriter, r *http.Request) {
	done, err := h.store.Settings().GetBool(store.SettingTutorialCompleted, false)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load settings")
		return
	}
	writeJSON(w, http.StatusOK, settingsResponse{
		Policy:            h.prefs.Policy(),
		Policies:          mode.Names(),
		TutorialCompleted: done,
	})
}

func (h *SettingsHandler) setPolicy(w http.ResponseWriter, raw json.RawMessage) {
	var name string
	if err := json.Unmarshal(raw, &name); err != nil {
		writeError(w, http.StatusBadRequest, "Policy must be a string")
		return
	}
	if err := h.prefs.SetPolicy(name); err != nil {
		if errors.Is(err, mode.ErrUnknownPolicy) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to save policy")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{store.SettingPolicy: name})
}

func (h *SettingsHandler) setTutorial(w http.ResponseWriter, raw json.RawMessage) {
	var done bool
	if err := json.Unmarshal(raw, &done); err != nil {
		// Accept "true"/"false" strings as well.
		var s string
		if json.Unmarshal(raw, &s) != nil {
			writeError(w, http.StatusBadRequest, "Value must be a boolean")
			return
		}
		if done, err = strconv.ParseBool(s); err != nil {
			writeError(w, http.StatusBadRequest, "Value must be a boolean")
			return
		}
	}

	var err error
	if done {
		err = h.prefs.SkipTutorial()
	} else {
		err = h.prefs.ResetTutorial()
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save tutorial state")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{store.SettingTutorialCompleted: done})
}
