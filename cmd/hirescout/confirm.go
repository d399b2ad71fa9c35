package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/ternarybob/hirescout/internal/services/orchestrator"
)

// maxConfirmAttempts bounds how often the user is asked before giving up
const maxConfirmAttempts = 10

// enterToConfirm asks the user to finish logging in and press Enter. Typing
// "q" or closing the input abandons the login.
func enterToConfirm(in io.Reader, out io.Writer) orchestrator.ConfirmFunc {
	lines := make(chan string)
	var once sync.Once
	startReader := func() {
		go func() {
			defer close(lines)
			scanner := bufio.NewScanner(in)
			for scanner.Scan() {
				lines <- scanner.Text()
			}
		}()
	}

	return func(ctx context.Context, attempt int, lastErr error) bool {
		if attempt > maxConfirmAttempts {
			fmt.Fprintln(out, "Too many attempts, continuing without login")
			return false
		}
		if lastErr != nil {
			fmt.Fprintf(out, "Login not detected yet (%v).\n", lastErr)
		}
		fmt.Fprint(out, "Complete the login in the browser window, then press Enter (q to skip): ")
		once.Do(startReader)

		select {
		case <-ctx.Done():
			return false
		case line, ok := <-lines:
			if !ok {
				return false
			}
			answer := strings.ToLower(strings.TrimSpace(line))
			return answer != "q" && answer != "quit"
		}
	}
}
