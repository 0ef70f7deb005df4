package git

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// IsRepository checks if the current directory is inside a Git repository.
func IsRepository() bool {
	cmd := exec.Command("git", "rev-parse", "--is-inside-work-tree")
	return cmd.Run() == nil
}

// EnsureIgnored makes sure the given entries are present in .gitignore so the
// config file holding the API key never gets committed. Outside a Git
// repository it only prints a reminder.
func EnsureIgnored(entries []string) error {
	if !IsRepository() {
		fmt.Printf("Note: not inside a Git repository. If you initialize one later,\nadd the following to your .gitignore: %s\n", strings.Join(entries, ", "))
		return nil
	}

	existing := make(map[string]bool)
	content, err := os.ReadFile(".gitignore")
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("could not read .gitignore: %w", err)
	}
	for _, line := range strings.Split(string(content), "\n") {
		existing[strings.TrimSpace(line)] = true
	}

	var missing []string
	for _, entry := range entries {
		if !existing[entry] {
			missing = append(missing, entry)
		}
	}
	if len(missing) == 0 {
		fmt.Println("✓ .gitignore already contains the necessary entries.")
		return nil
	}

	file, err := os.OpenFile(".gitignore", os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("could not open or create .gitignore: %w", err)
	}
	defer file.Close()

	if _, err := file.WriteString("\n" + strings.Join(missing, "\n") + "\n"); err != nil {
		return fmt.Errorf("failed to write to .gitignore: %w", err)
	}
	fmt.Printf("✓ Added the following entries to .gitignore: %s\n", strings.Join(missing, ", "))
	return nil
}
