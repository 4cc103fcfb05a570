// pattern: Imperative Shell

package web

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/exec"

	"github.com/coder/websocket"
	"github.com/creack/pty"

	"grove/internal/shell"
)

// ResizeMessage is sent from the client when the terminal viewport changes.
type ResizeMessage struct {
	Type string `json:"type"` // "resize"
	Cols uint16 `json:"cols"`
	Rows uint16 `json:"rows"`
}

// terminalArgv builds the shell invocation for a worktree terminal. WSL
// worktrees go through wsl.exe, which handles the directory change itself;
// native ones run the user's shell directly in the worktree.
func terminalArgv(distro, storedDir string) (argv []string, dir string) {
	if distro != "" {
		return shell.WSLArgv(distro, storedDir, []string{"/bin/bash", "-l"}), ""
	}
	sh := os.Getenv("SHELL")
	if sh == "" {
		sh = "/bin/bash"
	}
	return []string{sh, "-l"}, storedDir
}

// HandleTerminal upgrades to websocket and bridges PTY I/O for an
// interactive shell inside a worktree.
func (s *Server) HandleTerminal(w http.ResponseWriter, r *http.Request) {
	row, p, ok := s.resolveProject(w, r)
	if !ok {
		return
	}
	name := r.PathValue("name")

	storedDir := s.ops.WorktreePath(p, name)
	fsDir := p.Resolver().ToFileSystem(storedDir)
	if _, err := os.Stat(fsDir); err != nil {
		http.Error(w, "worktree not found", http.StatusNotFound)
		return
	}

	// Upgrade to websocket — IMPORTANT: do NOT use r.Context() after this.
	// Restrict to localhost origins to prevent cross-origin WebSocket attacks.
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"127.0.0.1:*", "localhost:*"},
	})
	if err != nil {
		s.logger.Error("websocket accept failed", "error", err)
		return
	}
	defer func() { _ = conn.CloseNow() }()
	conn.SetReadLimit(1 << 20) // 1 MB read limit

	argv, dir := terminalArgv(row.Distro, storedDir)
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "TERM=xterm-256color", "COLORTERM=truecolor")

	// Start command with PTY
	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: 24, Cols: 80})
	if err != nil {
		s.logger.Error("pty start failed", "error", err)
		_ = conn.Close(websocket.StatusInternalError, "terminal failed to start")
		return
	}
	defer func() { _ = ptmx.Close() }()
	defer func() { _ = cmd.Wait() }()

	s.logger.Info("terminal connected",
		"project", row.Path,
		"worktree", name,
	)

	ctx := context.Background()

	// PTY output → WebSocket (binary frames)
	done := make(chan struct{})
	go func() {
		defer close(done)
		buf := make([]byte, 4096)
		for {
			n, err := ptmx.Read(buf)
			if err != nil {
				return
			}
			if err := conn.Write(ctx, websocket.MessageBinary, buf[:n]); err != nil {
				return
			}
		}
	}()

	// WebSocket → PTY input (binary = keystrokes, text = control messages)
	go func() {
		for {
			msgType, data, err := conn.Read(ctx)
			if err != nil {
				// Websocket closed — close PTY to stop the output goroutine
				_ = ptmx.Close()
				return
			}
			if msgType == websocket.MessageText {
				var msg ResizeMessage
				if json.Unmarshal(data, &msg) == nil && msg.Type == "resize" {
					_ = pty.Setsize(ptmx, &pty.Winsize{Rows: msg.Rows, Cols: msg.Cols})
					continue
				}
			}
			// Write raw input to PTY; errors are non-fatal (process may have exited)
			_, _ = ptmx.Write(data)
		}
	}()

	// Block until PTY output goroutine exits (process exited or PTY closed)
	<-done

	s.logger.Info("terminal disconnected",
		"project", row.Path,
		"worktree", name,
	)

	_ = conn.Close(websocket.StatusNormalClosure, "terminal closed")
}
