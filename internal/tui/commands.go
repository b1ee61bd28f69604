package tui

import (
	"fmt"
	"strconv"
	"strings"
)

// commandKind identifies a slash command typed into the input.
type commandKind int

const (
	cmdMessage commandKind = iota
	cmdAccept
	cmdPersonas
	cmdScore
	cmdHelp
	cmdQuit
)

type command struct {
	kind commandKind
	text string
	n    int
	args []string
}

// parseCommand interprets one line of input. Anything that does not start
// with "/" is a chat message.
func parseCommand(line string) (command, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return command{kind: cmdMessage, text: line}, nil
	}
	name, rest, _ := strings.Cut(line[1:], " ")
	rest = strings.TrimSpace(rest)
	switch strings.ToLower(name) {
	case "accept", "a":
		n, err := strconv.Atoi(rest)
		if err != nil {
			return command{}, fmt.Errorf("usage: /accept N")
		}
		return command{kind: cmdAccept, n: n}, nil
	case "personas", "p":
		args := strings.FieldsFunc(rest, func(r rune) bool { return r == ',' || r == ' ' })
		if len(args) == 0 {
			return command{}, fmt.Errorf("usage: /personas developer,investor,...")
		}
		return command{kind: cmdPersonas, args: args}, nil
	case "score", "s":
		return command{kind: cmdScore}, nil
	case "help", "h", "?":
		return command{kind: cmdHelp}, nil
	case "quit", "q", "exit":
		return command{kind: cmdQuit}, nil
	}
	return command{}, fmt.Errorf("unknown command /%s (try /help)", name)
}

var helpLines = [][2]string{
	{"/accept N", "stage the advice of response N for the next turn"},
	{"/personas a,b", "change the panel"},
	{"/score", "show the scorecard"},
	{"/quit", "leave"},
}
