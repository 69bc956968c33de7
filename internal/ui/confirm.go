package ui

import (
	"fmt"

	"github.com/eiannone/keyboard"
)

// Confirm asks a single-keypress yes/no question on the terminal.
// Returns true only for y/Y; Esc and Ctrl+C count as no.
func Confirm(question string) (bool, error) {
	fmt.Printf("%s [y/N] ", question)

	char, key, err := keyboard.GetSingleKey()
	if err != nil {
		return false, fmt.Errorf("reading keypress: %w", err)
	}

	switch {
	case char == 'y' || char == 'Y':
		fmt.Println("y")
		return true, nil
	case key == keyboard.KeyEsc || key == keyboard.KeyCtrlC:
		fmt.Println()
		return false, nil
	default:
		fmt.Println("n")
		return false, nil
	}
}
