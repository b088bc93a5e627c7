// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package windows

import (
	"context"
	"errors"
	"fmt"
	"path"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/luxfi/ipc"
	"github.com/luxfi/ipc/history"
	"github.com/luxfi/ipc/uri"
	"github.com/luxfi/ipc/workspace"
)

const (
	maxRecentWorkspaces = 50
	maxRecentFiles      = 50

	extensionHostTitle = "[Extension Development Host]"
)

// ErrUnknownWindow is returned for a window id that is not open.
var ErrUnknownWindow = errors.New("windows: unknown window")

var (
	_ Service             = (*MemoryService)(nil)
	_ ExtensionHostOpener = (*MemoryService)(nil)
)

// MemoryService is an in-process Service that tracks windows and history
// without any UI. Events fire after the state change is visible.
type MemoryService struct {
	log zerolog.Logger

	mu         sync.Mutex
	windows    map[int]*WindowInfo
	nextID     int
	active     int
	workspaces []history.Recent
	files      []history.Recent

	onWindowOpen           *ipc.Emitter[int]
	onWindowFocus          *ipc.Emitter[int]
	onWindowBlur           *ipc.Emitter[int]
	onWindowMaximize       *ipc.Emitter[int]
	onWindowUnmaximize     *ipc.Emitter[int]
	onRecentlyOpenedChange *ipc.Emitter[struct{}]
}

// NewMemoryService returns a service with no windows and no history.
func NewMemoryService(log zerolog.Logger) *MemoryService {
	return &MemoryService{
		log:                    log.With().Str("service", ChannelName).Logger(),
		windows:                make(map[int]*WindowInfo),
		onWindowOpen:           ipc.NewEmitter[int](),
		onWindowFocus:          ipc.NewEmitter[int](),
		onWindowBlur:           ipc.NewEmitter[int](),
		onWindowMaximize:       ipc.NewEmitter[int](),
		onWindowUnmaximize:     ipc.NewEmitter[int](),
		onRecentlyOpenedChange: ipc.NewEmitter[struct{}](),
	}
}

// Event sources of the service. Each fires synchronously after the state
// change it reports.
func (s *MemoryService) OnWindowOpen() ipc.Event[int]       { return s.onWindowOpen.Event() }
func (s *MemoryService) OnWindowFocus() ipc.Event[int]      { return s.onWindowFocus.Event() }
func (s *MemoryService) OnWindowBlur() ipc.Event[int]       { return s.onWindowBlur.Event() }
func (s *MemoryService) OnWindowMaximize() ipc.Event[int]   { return s.onWindowMaximize.Event() }
func (s *MemoryService) OnWindowUnmaximize() ipc.Event[int] { return s.onWindowUnmaximize.Event() }

// OnRecentlyOpenedChange fires after every change of the history.
func (s *MemoryService) OnRecentlyOpenedChange() ipc.Event[struct{}] {
	return s.onRecentlyOpenedChange.Event()
}

// AddRecentlyOpened moves recents to the front of the history. Workspaces
// and folders share one list.
func (s *MemoryService) AddRecentlyOpened(_ context.Context, recents []history.Recent) error {
	if len(recents) == 0 {
		return nil
	}
	for _, r := range recents {
		if recentLocation(r) == nil {
			return fmt.Errorf("%w: %s entry", history.ErrEmptyRecent, r.Kind())
		}
	}
	s.mu.Lock()
	for _, r := range recents {
		if r.IsFile() {
			s.files = pushRecent(s.files, r, maxRecentFiles)
		} else {
			s.workspaces = pushRecent(s.workspaces, r, maxRecentWorkspaces)
		}
	}
	s.mu.Unlock()

	s.onRecentlyOpenedChange.Fire(struct{}{})
	return nil
}

// pushRecent puts r first and drops older entries for the same location.
func pushRecent(list []history.Recent, r history.Recent, limit int) []history.Recent {
	loc := recentLocation(r)
	out := make([]history.Recent, 0, len(list)+1)
	out = append(out, r)
	for _, existing := range list {
		if !recentLocation(existing).Equal(loc) {
			out = append(out, existing)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func recentLocation(r history.Recent) *uri.URI {
	switch r.Kind() {
	case history.KindFile:
		return r.FileURI()
	case history.KindFolder:
		return r.FolderURI()
	default:
		if ws := r.Workspace(); ws != nil {
			return ws.ConfigPath
		}
		return nil
	}
}

// RemoveFromRecentlyOpened drops every entry located at one of paths.
func (s *MemoryService) RemoveFromRecentlyOpened(_ context.Context, paths []*uri.URI) error {
	matches := func(r history.Recent) bool {
		loc := recentLocation(r)
		return slices.ContainsFunc(paths, loc.Equal)
	}

	s.mu.Lock()
	before := len(s.workspaces) + len(s.files)
	s.workspaces = slices.DeleteFunc(s.workspaces, matches)
	s.files = slices.DeleteFunc(s.files, matches)
	changed := len(s.workspaces)+len(s.files) != before
	s.mu.Unlock()

	if changed {
		s.onRecentlyOpenedChange.Fire(struct{}{})
	}
	return nil
}

// ClearRecentlyOpened empties both lists and always reports a change.
func (s *MemoryService) ClearRecentlyOpened(context.Context) error {
	s.mu.Lock()
	s.workspaces = nil
	s.files = nil
	s.mu.Unlock()

	s.onRecentlyOpenedChange.Fire(struct{}{})
	return nil
}

// GetRecentlyOpened returns a copy of the history. The window id is not
// used to filter it.
func (s *MemoryService) GetRecentlyOpened(_ context.Context, _ int) (history.RecentlyOpened, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return history.RecentlyOpened{
		Workspaces: slices.Clone(s.workspaces),
		Files:      slices.Clone(s.files),
	}, nil
}

// FocusWindow focuses windowID, blurring the window that had focus.
func (s *MemoryService) FocusWindow(_ context.Context, windowID int) error {
	s.mu.Lock()
	if _, ok := s.windows[windowID]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrUnknownWindow, windowID)
	}
	blurred := s.focusLocked(windowID)
	s.mu.Unlock()

	s.fireFocus(windowID, blurred)
	return nil
}

// focusLocked makes id active and returns the window that lost focus, or
// zero.
func (s *MemoryService) focusLocked(id int) int {
	previous := s.active
	s.active = id
	if previous == id {
		return 0
	}
	return previous
}

func (s *MemoryService) fireFocus(focused, blurred int) {
	if blurred != 0 {
		s.onWindowBlur.Fire(blurred)
	}
	s.onWindowFocus.Fire(focused)
}

// IsFocused reports whether windowID is the active window.
func (s *MemoryService) IsFocused(_ context.Context, windowID int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active != 0 && s.active == windowID, nil
}

// OpenWindow opens one window per target, or a single empty window when
// there are none. With ForceReuseWindow the first target replaces the
// contents of args.WindowID when that window is open.
func (s *MemoryService) OpenWindow(_ context.Context, args OpenWindowArgs) error {
	for _, target := range args.URIsToOpen {
		if target.Kind != 0 && target.URI == nil {
			return fmt.Errorf("%w: %s target", ErrEmptyURIToOpen, target.Kind)
		}
	}
	targets := args.URIsToOpen
	if len(targets) == 0 {
		targets = []URIToOpen{{}}
	}

	var (
		opened  []int
		recents []history.Recent
	)
	s.mu.Lock()
	for i, target := range targets {
		if r, ok := recentFor(target); ok && !args.Options.NoRecentEntry {
			recents = append(recents, r)
		}

		info := windowFor(target)
		if i == 0 && args.Options.ForceReuseWindow && !args.Options.ForceNewWindow {
			if _, ok := s.windows[args.WindowID]; ok {
				info.ID = args.WindowID
				s.windows[info.ID] = &info
				continue
			}
		}
		s.nextID++
		info.ID = s.nextID
		s.windows[info.ID] = &info
		opened = append(opened, info.ID)
	}
	focused := s.active
	var blurred int
	if len(opened) > 0 {
		focused = opened[len(opened)-1]
		blurred = s.focusLocked(focused)
	}
	for _, r := range recents {
		if r.IsFile() {
			s.files = pushRecent(s.files, r, maxRecentFiles)
		} else {
			s.workspaces = pushRecent(s.workspaces, r, maxRecentWorkspaces)
		}
	}
	s.mu.Unlock()

	s.log.Debug().
		Ints("opened", opened).
		Bool("waitMarker", args.Options.WaitMarkerFileURI != nil).
		Msg("open window")

	for _, id := range opened {
		s.onWindowOpen.Fire(id)
	}
	if len(opened) > 0 {
		s.fireFocus(focused, blurred)
	}
	if len(recents) > 0 {
		s.onRecentlyOpenedChange.Fire(struct{}{})
	}
	return nil
}

func windowFor(target URIToOpen) WindowInfo {
	switch target.Kind {
	case KindWorkspace:
		return WindowInfo{
			Workspace: workspaceFor(target.URI),
			Title:     titleFor(target),
		}
	case KindFolder:
		return WindowInfo{FolderURI: target.URI, Title: titleFor(target)}
	case KindFile:
		return WindowInfo{Filename: target.URI.Path(), Title: titleFor(target)}
	default:
		return WindowInfo{Title: "Untitled"}
	}
}

func titleFor(target URIToOpen) string {
	if target.Label != "" {
		return target.Label
	}
	return path.Base(target.URI.Path())
}

// workspaceFor derives a stable workspace id from the configuration path.
func workspaceFor(configPath *uri.URI) *workspace.Identifier {
	id := uuid.NewSHA1(uuid.NameSpaceURL, []byte(configPath.String()))
	return &workspace.Identifier{ID: id.String(), ConfigPath: configPath}
}

func recentFor(target URIToOpen) (history.Recent, bool) {
	switch target.Kind {
	case KindWorkspace:
		return history.NewRecentWorkspace(workspaceFor(target.URI), target.Label), true
	case KindFolder:
		return history.NewRecentFolder(target.URI, target.Label), true
	case KindFile:
		return history.NewRecentFile(target.URI, target.Label), true
	default:
		return history.Recent{}, false
	}
}

// OpenExtensionDevelopmentHostWindow opens an empty, focused window.
func (s *MemoryService) OpenExtensionDevelopmentHostWindow(_ context.Context, args ExtensionDevelopmentHostArgs) error {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.windows[id] = &WindowInfo{ID: id, Title: extensionHostTitle}
	blurred := s.focusLocked(id)
	s.mu.Unlock()

	s.log.Debug().Int("window", id).Int("env", len(args.Env)).Msg("open extension development host")
	s.onWindowOpen.Fire(id)
	s.fireFocus(id, blurred)
	return nil
}

// GetWindows returns the open windows ordered by id.
func (s *MemoryService) GetWindows(context.Context) ([]WindowInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]WindowInfo, 0, len(s.windows))
	for _, w := range s.windows {
		out = append(out, *w)
	}
	slices.SortFunc(out, func(a, b WindowInfo) int { return a.ID - b.ID })
	return out, nil
}

// GetActiveWindowID returns the active window, with ok false when none is.
func (s *MemoryService) GetActiveWindowID(context.Context) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active, s.active != 0, nil
}

// MaximizeWindow marks a window maximized.
func (s *MemoryService) MaximizeWindow(windowID int) error {
	if err := s.checkWindow(windowID); err != nil {
		return err
	}
	s.onWindowMaximize.Fire(windowID)
	return nil
}

// UnmaximizeWindow restores a maximized window.
func (s *MemoryService) UnmaximizeWindow(windowID int) error {
	if err := s.checkWindow(windowID); err != nil {
		return err
	}
	s.onWindowUnmaximize.Fire(windowID)
	return nil
}

// CloseWindow closes a window. Closing the active window leaves no window
// active.
func (s *MemoryService) CloseWindow(windowID int) error {
	s.mu.Lock()
	if _, ok := s.windows[windowID]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrUnknownWindow, windowID)
	}
	delete(s.windows, windowID)
	wasActive := s.active == windowID
	if wasActive {
		s.active = 0
	}
	s.mu.Unlock()

	if wasActive {
		s.onWindowBlur.Fire(windowID)
	}
	return nil
}

func (s *MemoryService) checkWindow(windowID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.windows[windowID]; !ok {
		return fmt.Errorf("%w: %d", ErrUnknownWindow, windowID)
	}
	return nil
}

// Dispose detaches every listener from the service events.
func (s *MemoryService) Dispose() {
	s.onWindowOpen.Dispose()
	s.onWindowFocus.Dispose()
	s.onWindowBlur.Dispose()
	s.onWindowMaximize.Dispose()
	s.onWindowUnmaximize.Dispose()
	s.onRecentlyOpenedChange.Dispose()
}
