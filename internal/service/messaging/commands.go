package messaging

import (
	"strings"

	"github.com/mamadbah2/nutritrack/internal/domain/models"
)

// CommandType enumerates what an inbound message asks for.
type CommandType string

const (
	CommandAnalyze CommandType = "analyze"
	CommandLog     CommandType = "log"
	CommandToday   CommandType = "today"
	CommandRetry   CommandType = "retry"
	CommandHelp    CommandType = "help"
)

// Command is a parsed inbound message. Text is the trimmed original for analysis.
type Command struct {
	Type CommandType
	Text string
	Args []string
}

// ParseCommand classifies a message. Anything that is not a known keyword, with or
// without a leading slash, is a meal description to analyze.
func ParseCommand(message string) Command {
	text := strings.TrimSpace(message)
	tokens := strings.Fields(strings.ToLower(text))
	if len(tokens) == 0 {
		return Command{Type: CommandHelp}
	}

	cmd := Command{Text: text}
	switch strings.TrimPrefix(tokens[0], "/") {
	case string(CommandLog):
		cmd.Type = CommandLog
	case string(CommandToday):
		cmd.Type = CommandToday
	case string(CommandRetry):
		cmd.Type = CommandRetry
	case string(CommandHelp), "start":
		cmd.Type = CommandHelp
	default:
		cmd.Type = CommandAnalyze
		return cmd
	}
	cmd.Args = tokens[1:]
	return cmd
}

// MealType is the meal type named by a log command; snack when none is given.
func (c Command) MealType() (models.MealType, error) {
	if len(c.Args) == 0 {
		return models.MealSnack, nil
	}
	t := models.MealType(c.Args[0])
	if !t.Valid() {
		return "", models.NewValidationError("type", "must be breakfast, lunch, dinner or snack")
	}
	return t, nil
}
