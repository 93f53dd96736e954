// Package wizard collects a launch configuration interactively.
//
// The dialog is a finite-state machine over option groups. Selecting an item
// that needs more input opens a sub-prompt; the machine snapshots its state
// before the sub-prompt and restores the snapshot verbatim if the sub-prompt
// is dismissed. Machine holds no UI and is driven directly in tests; Model
// renders it with bubbletea.
package wizard

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Iron-Ham/labkeeper/internal/errors"
	"github.com/Iron-Ham/labkeeper/internal/launch"
)

// ItemID identifies one selectable option.
type ItemID string

const (
	ItemTokenRandom   ItemID = "token.random"
	ItemTokenEmpty    ItemID = "token.empty"
	ItemTokenSpecific ItemID = "token.specific"
	ItemPassword      ItemID = "auth.password"
	ItemCORS          ItemID = "network.cors"
	ItemOpenBrowser   ItemID = "network.browser"
	ItemCustomDir     ItemID = "directory.custom"
	ItemMapDir        ItemID = "mapping.remote"
	ItemRegister      ItemID = "host.register"
)

// Group is a set of related items.
type Group string

const (
	GroupToken     Group = "Token"
	GroupAuth      Group = "Authentication"
	GroupNetwork   Group = "Network"
	GroupDirectory Group = "Directory"
	GroupMapping   Group = "Mapping"
	GroupHost      Group = "Host"
)

// Item is one row of the option list.
type Item struct {
	ID          ItemID
	Group       Group
	Label       string
	Description string
	// Radio items are mutually exclusive within their group.
	Radio bool
}

var tokenItems = []ItemID{ItemTokenRandom, ItemTokenEmpty, ItemTokenSpecific}

func catalog(hints Hints) []Item {
	items := []Item{
		{ID: ItemTokenRandom, Group: GroupToken, Label: "Random token", Description: "Generate a token for this server", Radio: true},
		{ID: ItemTokenEmpty, Group: GroupToken, Label: "No token", Description: "Run without a token", Radio: true},
		{ID: ItemTokenSpecific, Group: GroupToken, Label: "Specific token", Description: "Enter the token to use", Radio: true},
		{ID: ItemPassword, Group: GroupAuth, Label: "Password", Description: "Require a password"},
		{ID: ItemCORS, Group: GroupNetwork, Label: "Allow cross-origin requests", Description: "Accept requests from any origin"},
		{ID: ItemOpenBrowser, Group: GroupNetwork, Label: "Open in browser", Description: "Let the server open a browser tab"},
		{ID: ItemCustomDir, Group: GroupDirectory, Label: "Custom working directory", Description: "Start the server in another folder"},
		{ID: ItemMapDir, Group: GroupMapping, Label: "Map local to remote directory", Description: "Record a local folder that mirrors the server directory"},
	}
	if hints.ShowRegister {
		items = append(items, Item{ID: ItemRegister, Group: GroupHost, Label: "Register with host", Description: "Persist the session so other clients can attach"})
	}
	return items
}

// Hints are the caller-supplied defaults.
type Hints struct {
	Kind launch.Kind
	// OpenBrowser is the initial state of the browser toggle.
	OpenBrowser bool
	// ShowRegister shows the register-with-host toggle.
	ShowRegister bool
	// DefaultDirectory is the working directory when no custom one is chosen.
	// Empty means the system temp directory.
	DefaultDirectory string
}

// Phase is the machine's current state.
type Phase int

const (
	PhaseOptions Phase = iota
	PhasePrompt
	PhaseAccepted
	PhaseCancelled
	PhaseBack
)

// Done reports whether the phase is terminal.
func (p Phase) Done() bool {
	return p >= PhaseAccepted
}

// PromptKind selects what a sub-prompt collects.
type PromptKind int

const (
	PromptText PromptKind = iota
	PromptSecret
	PromptFolder
)

// Prompt is an open sub-prompt.
type Prompt struct {
	Item        ItemID
	Kind        PromptKind
	Title       string
	Placeholder string
	Initial     string
	// Err is the last validation failure; the sub-prompt stays open.
	Err error
}

// state is everything a sub-prompt can change. It is copied whole for
// snapshots, so it must not hold references.
type state struct {
	selected   map[ItemID]bool
	tokenValue string
	password   string
	directory  string
	mappedDir  string
}

func (s state) clone() state {
	c := s
	c.selected = make(map[ItemID]bool, len(s.selected))
	for k, v := range s.selected {
		c.selected[k] = v
	}
	return c
}

// Machine is the wizard state machine. It is not safe for concurrent use.
type Machine struct {
	hints Hints
	items []Item

	state    state
	snapshot *state
	prompt   *Prompt
	phase    Phase

	config launch.Configuration

	// statDir validates folder sub-prompt answers.
	statDir func(path string) error
}

// NewMachine creates a Machine with the default selection.
func NewMachine(hints Hints) *Machine {
	if hints.Kind == "" {
		hints.Kind = launch.KindLab
	}
	m := &Machine{
		hints:   hints,
		items:   catalog(hints),
		statDir: requireDir,
		state: state{
			selected: map[ItemID]bool{
				ItemTokenRandom: true,
				ItemCORS:        true,
				ItemOpenBrowser: hints.OpenBrowser,
				ItemRegister:    hints.ShowRegister,
			},
		},
	}
	return m
}

func requireDir(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", path)
	}
	return nil
}

// Items returns the visible options in display order.
func (m *Machine) Items() []Item {
	return m.items
}

// Phase returns the current phase.
func (m *Machine) Phase() Phase {
	return m.phase
}

// Prompt returns the open sub-prompt, or nil.
func (m *Machine) Prompt() *Prompt {
	return m.prompt
}

// Selected reports whether id is currently selected.
func (m *Machine) Selected(id ItemID) bool {
	return m.state.selected[id]
}

// TokenMode returns the active token group member.
func (m *Machine) TokenMode() launch.TokenMode {
	switch {
	case m.state.selected[ItemTokenSpecific]:
		return launch.TokenSpecific
	case m.state.selected[ItemTokenEmpty]:
		return launch.TokenEmpty
	default:
		return launch.TokenRandom
	}
}

// Detail returns the value captured for id, for display.
func (m *Machine) Detail(id ItemID) string {
	switch id {
	case ItemTokenSpecific:
		return m.state.tokenValue
	case ItemPassword:
		if m.state.password != "" {
			return strings.Repeat("•", 8)
		}
	case ItemCustomDir:
		return m.state.directory
	case ItemMapDir:
		return m.state.mappedDir
	}
	return ""
}

// Toggle flips id. If the new selection needs input, a sub-prompt opens and
// the toggle is only kept once the sub-prompt is submitted.
func (m *Machine) Toggle(id ItemID) *Prompt {
	if m.phase != PhaseOptions || !m.visible(id) {
		return nil
	}

	snap := m.state.clone()
	turningOn := !m.state.selected[id]

	if isToken(id) {
		for _, t := range tokenItems {
			m.state.selected[t] = false
		}
	}
	m.state.selected[id] = turningOn
	if !turningOn {
		m.clearValue(id)
	}
	m.normalize()

	if turningOn {
		if p := m.promptFor(id); p != nil {
			m.snapshot = &snap
			m.prompt = p
			m.phase = PhasePrompt
			return p
		}
	}
	return nil
}

// SubmitPrompt answers the open sub-prompt. An invalid answer keeps the
// sub-prompt open with Err set.
func (m *Machine) SubmitPrompt(value string) error {
	if m.phase != PhasePrompt || m.prompt == nil {
		return fmt.Errorf("no prompt is open")
	}

	if err := m.apply(m.prompt.Item, value); err != nil {
		m.prompt.Err = err
		return err
	}

	m.snapshot = nil
	m.prompt = nil
	m.phase = PhaseOptions
	return nil
}

// DismissPrompt cancels the open sub-prompt and restores the selection as it
// was before the sub-prompt opened.
func (m *Machine) DismissPrompt() {
	if m.phase != PhasePrompt {
		return
	}
	if m.snapshot != nil {
		m.state = *m.snapshot
	}
	m.snapshot = nil
	m.prompt = nil
	m.normalize()
	m.phase = PhaseOptions
}

// Accept finishes the wizard with the displayed selection.
func (m *Machine) Accept() (launch.Configuration, error) {
	if m.phase != PhaseOptions {
		return launch.Configuration{}, fmt.Errorf("cannot accept while a prompt is open")
	}

	cfg := m.build()
	if err := cfg.Validate(); err != nil {
		return launch.Configuration{}, err
	}
	m.config = cfg
	m.phase = PhaseAccepted
	return cfg, nil
}

// Back finishes the wizard without a configuration.
func (m *Machine) Back() {
	if m.phase.Done() {
		return
	}
	m.prompt, m.snapshot = nil, nil
	m.phase = PhaseBack
}

// Cancel finishes the wizard without a configuration.
func (m *Machine) Cancel() {
	if m.phase.Done() {
		return
	}
	m.prompt, m.snapshot = nil, nil
	m.phase = PhaseCancelled
}

// Result returns the terminal outcome. Config is only set when Accepted.
func (m *Machine) Result() Result {
	switch m.phase {
	case PhaseAccepted:
		return Result{Outcome: Accepted, Config: m.config}
	case PhaseBack:
		return Result{Outcome: Back}
	default:
		return Result{Outcome: Cancelled}
	}
}

func (m *Machine) build() launch.Configuration {
	dir := m.hints.DefaultDirectory
	if m.state.selected[ItemCustomDir] && m.state.directory != "" {
		dir = m.state.directory
	}
	if dir == "" {
		dir = os.TempDir()
	}

	cfg := launch.Configuration{
		Kind:             m.hints.Kind,
		Token:            launch.Token{Mode: m.TokenMode()},
		CORS:             m.state.selected[ItemCORS],
		OpenBrowser:      m.state.selected[ItemOpenBrowser],
		WorkingDirectory: dir,
		RegisterWithHost: !m.hints.ShowRegister || m.state.selected[ItemRegister],
	}
	if cfg.Token.Mode == launch.TokenSpecific {
		cfg.Token.Value = m.state.tokenValue
	}
	if m.state.selected[ItemPassword] {
		cfg.Password = m.state.password
	}
	if m.state.selected[ItemMapDir] {
		cfg.RemoteDirectoryMapping = m.state.mappedDir
	}
	return cfg
}

// normalize enforces that exactly one token item is selected.
func (m *Machine) normalize() {
	n := 0
	for _, t := range tokenItems {
		if m.state.selected[t] {
			n++
		}
	}
	if n == 1 {
		return
	}
	for _, t := range tokenItems {
		m.state.selected[t] = false
	}
	m.state.selected[ItemTokenRandom] = true
	m.state.tokenValue = ""
}

func (m *Machine) promptFor(id ItemID) *Prompt {
	switch id {
	case ItemTokenSpecific:
		return &Prompt{Item: id, Kind: PromptText, Title: "Token", Placeholder: "token to require", Initial: m.state.tokenValue}
	case ItemPassword:
		return &Prompt{Item: id, Kind: PromptSecret, Title: "Password", Placeholder: "leave blank for none"}
	case ItemCustomDir:
		return &Prompt{Item: id, Kind: PromptFolder, Title: "Working directory", Placeholder: "/path/to/notebooks", Initial: m.hints.DefaultDirectory}
	case ItemMapDir:
		return &Prompt{Item: id, Kind: PromptFolder, Title: "Local directory mapped to the server directory", Placeholder: "/path/to/local/copy"}
	default:
		return nil
	}
}

func (m *Machine) apply(id ItemID, value string) error {
	switch id {
	case ItemTokenSpecific:
		if strings.TrimSpace(value) == "" {
			return errors.InvalidToken()
		}
		m.state.tokenValue = value
	case ItemPassword:
		// Declining to enter one leaves the password unset.
		if value == "" {
			m.state.selected[ItemPassword] = false
		}
		m.state.password = value
	case ItemCustomDir, ItemMapDir:
		path, err := m.resolveFolder(value)
		if err != nil {
			return err
		}
		if id == ItemCustomDir {
			m.state.directory = path
		} else {
			m.state.mappedDir = path
		}
	}
	return nil
}

func (m *Machine) resolveFolder(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("choose a folder")
	}
	if strings.HasPrefix(value, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			value = filepath.Join(home, strings.TrimPrefix(value, "~"))
		}
	}
	path, err := filepath.Abs(value)
	if err != nil {
		return "", err
	}
	if err := m.statDir(path); err != nil {
		return "", err
	}
	return path, nil
}

func (m *Machine) clearValue(id ItemID) {
	switch id {
	case ItemTokenSpecific:
		m.state.tokenValue = ""
	case ItemPassword:
		m.state.password = ""
	case ItemCustomDir:
		m.state.directory = ""
	case ItemMapDir:
		m.state.mappedDir = ""
	}
}

func (m *Machine) visible(id ItemID) bool {
	for _, it := range m.items {
		if it.ID == id {
			return true
		}
	}
	return false
}

func isToken(id ItemID) bool {
	for _, t := range tokenItems {
		if t == id {
			return true
		}
	}
	return false
}

// Outcome is how the wizard ended.
type Outcome int

const (
	Accepted Outcome = iota
	Cancelled
	Back
)

func (o Outcome) String() string {
	switch o {
	case Accepted:
		return "accepted"
	case Back:
		return "back"
	default:
		return "cancelled"
	}
}

// Result is the wizard's outcome.
type Result struct {
	Outcome Outcome
	Config  launch.Configuration
}
