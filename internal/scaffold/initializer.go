// Package scaffold creates the starter files for a new Warren project.
package scaffold

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

//go:embed templates/*
var templatesFS embed.FS

// FileInfo represents a file to be created during initialization
type FileInfo struct {
	Path        string
	Content     []byte
	Permissions os.FileMode
}

// Initialize creates the Warren project structure.
// If force is true, it removes an existing warren.yml and agents/ first.
func Initialize(force bool) error {
	if force {
		if err := handleForce(); err != nil {
			return err
		}
	}

	files, err := getTemplateFiles()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Join("agents", "planner"), 0755); err != nil {
		return fmt.Errorf("failed to create agents directory: %w", err)
	}

	for _, file := range files {
		if err := os.WriteFile(file.Path, file.Content, file.Permissions); err != nil {
			return fmt.Errorf("failed to write %s: %w", file.Path, err)
		}
	}

	return validateCreatedFiles()
}

// handleForce removes existing files if --force was specified
func handleForce() error {
	if _, err := os.Stat("warren.yml"); err == nil {
		fmt.Println("⚠️  Removing existing warren.yml...")
		if err := os.Remove("warren.yml"); err != nil {
			return fmt.Errorf("failed to remove warren.yml: %w", err)
		}
	}

	if info, err := os.Stat("agents"); err == nil && info.IsDir() {
		fmt.Println("⚠️  Removing existing agents/ directory...")
		if err := os.RemoveAll("agents"); err != nil {
			return fmt.Errorf("failed to remove agents/ directory: %w", err)
		}
	}

	return nil
}

// getTemplateFiles reads the embedded templates.
func getTemplateFiles() ([]FileInfo, error) {
	templates := []struct {
		template    string
		path        string
		permissions os.FileMode
	}{
		{"templates/warren.yml.tmpl", "warren.yml", 0644},
		{"templates/run.sh.tmpl", filepath.Join("agents", "planner", "run.sh"), 0755},
		{"templates/README.md.tmpl", filepath.Join("agents", "planner", "README.md"), 0644},
	}

	files := make([]FileInfo, 0, len(templates))
	for _, tmpl := range templates {
		content, err := templatesFS.ReadFile(tmpl.template)
		if err != nil {
			return nil, fmt.Errorf("failed to read template %s: %w", tmpl.template, err)
		}
		files = append(files, FileInfo{
			Path:        tmpl.path,
			Content:     content,
			Permissions: tmpl.permissions,
		})
	}

	return files, nil
}

// validateCreatedFiles confirms the generated warren.yml parses.
func validateCreatedFiles() error {
	content, err := os.ReadFile("warren.yml")
	if err != nil {
		return fmt.Errorf("failed to read created warren.yml: %w", err)
	}

	var yamlData interface{}
	if err := yaml.Unmarshal(content, &yamlData); err != nil {
		return fmt.Errorf("created warren.yml is not valid YAML: %w", err)
	}

	return nil
}

// PrintSuccess prints the success message with created files
func PrintSuccess() {
	fmt.Println("\n✅ Successfully initialized Warren project!")
	fmt.Println("\nCreated:")
	fmt.Println("  ✓ warren.yml")
	fmt.Println("  ✓ agents/planner/run.sh")
	fmt.Println("  ✓ agents/planner/README.md")
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Customize warren.yml to add your own agents")
	fmt.Println("  2. Run 'warren up' to start the coordinator")
	fmt.Println("  3. Run 'warren kindle --goal \"...\"' to seed a project")
}
