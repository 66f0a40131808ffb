package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/mkrall/clerk/internal/tools"
)

// terminalApprover asks the operator before each state-changing tool
// call. Anything but y/yes rejects; extra text becomes the comment fed
// back to the model.
type terminalApprover struct {
	in *bufio.Reader
}

func newTerminalApprover() *terminalApprover {
	return &terminalApprover{in: bufio.NewReader(os.Stdin)}
}

func (a *terminalApprover) RequestApproval(name string, args json.RawMessage) (tools.Decision, error) {
	color.New(color.FgYellow, color.Bold).Printf("approve %s?", name)
	fmt.Printf(" %s\n", compactJSON(args))
	fmt.Print("[y/N or reason]: ")

	line, err := a.in.ReadString('\n')
	if err != nil {
		return tools.Decision{}, fmt.Errorf("reading approval: %w", err)
	}
	line = strings.TrimSpace(line)

	switch strings.ToLower(line) {
	case "y", "yes":
		return tools.Decision{Approved: true}, nil
	case "", "n", "no":
		return tools.Decision{Approved: false}, nil
	default:
		return tools.Decision{Approved: false, Comment: line}, nil
	}
}

func compactJSON(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
