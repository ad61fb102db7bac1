package llmsynthdata

import (
	"fmt"
	"strconv"
	"strings"
)

var boolChoiceWords = map[string]bool{
	"true": true, "t": true, "1": true, "yes": true, "y": true, "on": true,
	"false": false, "f": false, "0": false, "no": false, "n": false, "off": false,
}

// boolChoice is a pflag.Value that also accepts yes/no, on/off and y/n.
type boolChoice struct {
	target *bool
}

func newBoolChoice(target *bool, initial bool) *boolChoice {
	*target = initial
	return &boolChoice{target: target}
}

func (choice *boolChoice) String() string {
	if choice == nil || choice.target == nil {
		return ""
	}
	return strconv.FormatBool(*choice.target)
}

func (choice *boolChoice) Set(input string) error {
	value, err := parseBoolChoice(input)
	if err != nil {
		return err
	}
	*choice.target = value
	return nil
}

func (choice *boolChoice) Type() string {
	return "bool"
}

// parseBoolChoice treats a blank value as true, matching a bare --flag.
func parseBoolChoice(input string) (bool, error) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return true, nil
	}
	value, ok := boolChoiceWords[normalized]
	if !ok {
		return false, fmt.Errorf("invalid boolean value %q (use true/false, yes/no, on/off)", input)
	}
	return value, nil
}
