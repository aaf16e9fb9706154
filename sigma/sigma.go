// Package sigma evaluates removal events against Sigma file_delete
// rules and journals matches. Rules live in an enabled_rules directory
// watched for changes, so dropping a new .yml file in takes effect
// without a restart.
package sigma

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bradleyjkemp/sigma-go"
	"github.com/bradleyjkemp/sigma-go/evaluator"
	"github.com/fsnotify/fsnotify"
)

// Detector manages Sigma rules and detection
type Detector struct {
	RulesDir   string
	db         *sql.DB
	evaluators map[string]*evaluator.RuleEvaluator
	mu         sync.RWMutex
	reloadChan chan bool
	watcher    *fsnotify.Watcher
}

// MatchResult represents the result of a rule evaluation
type MatchResult struct {
	Match        bool
	Rule         sigma.Rule
	MatchDetails []string
}

// fieldConfig maps the field names file_delete rules use onto the
// fields our removal events carry.
func fieldConfig() sigma.Config {
	return sigma.Config{
		Title: "Removal Trace Config",
		FieldMappings: map[string]sigma.FieldMapping{
			"TargetFilename": {TargetNames: []string{"TargetFilename"}},
			"Image":          {TargetNames: []string{"Image"}},
			"CommandLine":    {TargetNames: []string{"CommandLine"}},
			"User":           {TargetNames: []string{"User"}},
			"ProcessId":      {TargetNames: []string{"ProcessId"}},
		},
	}
}

// NewDetector creates a detector over the given rules directory.
func NewDetector(rulesDir string, db *sql.DB) (*Detector, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %v", err)
	}

	detector := &Detector{
		RulesDir:   rulesDir,
		db:         db,
		evaluators: make(map[string]*evaluator.RuleEvaluator),
		reloadChan: make(chan bool, 1), // buffer of 1 so reload signals never block
		watcher:    watcher,
	}

	enabledDir := filepath.Join(rulesDir, "enabled_rules")
	disabledDir := filepath.Join(rulesDir, "disabled_rules")

	for _, dir := range []string{enabledDir, disabledDir} {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			if err := os.MkdirAll(dir, 0755); err != nil {
				watcher.Close()
				return nil, fmt.Errorf("failed to create directory %s: %v", dir, err)
			}
		}
	}

	if err := detector.setupWatcher(); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to set up file watcher: %v", err)
	}

	if err := detector.LoadRules(); err != nil {
		return nil, fmt.Errorf("failed to load rules: %v", err)
	}

	return detector, nil
}

func (sd *Detector) setupWatcher() error {
	// Only the enabled directory matters; disabled rules are inert.
	enabledDir := filepath.Join(sd.RulesDir, "enabled_rules")

	if err := sd.watcher.Add(enabledDir); err != nil {
		return fmt.Errorf("failed to watch directory %s: %v", enabledDir, err)
	}
	fmt.Printf("Watching directory for changes: %s\n", enabledDir)

	go sd.watchFileChanges()

	return nil
}

func (sd *Detector) watchFileChanges() {
	for {
		select {
		case event, ok := <-sd.watcher.Events:
			if !ok {
				return
			}

			if !strings.HasSuffix(event.Name, ".yml") && !strings.HasSuffix(event.Name, ".yaml") {
				continue
			}

			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				fmt.Printf("Detected rule change: %s\n", event.Name)
				sd.ReloadRules()
			}

		case err, ok := <-sd.watcher.Errors:
			if !ok {
				return
			}
			fmt.Printf("File watcher error: %v\n", err)
		}
	}
}

// LoadRules loads all Sigma rules from the enabled_rules directory
func (sd *Detector) LoadRules() error {
	enabledDir := filepath.Join(sd.RulesDir, "enabled_rules")

	files, err := os.ReadDir(enabledDir)
	if err != nil {
		return err
	}

	evaluators := make(map[string]*evaluator.RuleEvaluator)

	count := 0
	for _, file := range files {
		if file.IsDir() || (filepath.Ext(file.Name()) != ".yml" && filepath.Ext(file.Name()) != ".yaml") {
			continue
		}

		filePath := filepath.Join(enabledDir, file.Name())
		rule, ruleEvaluator, err := loadRuleFile(filePath)
		if err != nil {
			fmt.Printf("Warning: Failed to load rule file %s: %v\n", filePath, err)
			continue
		}

		evaluators[rule.ID] = ruleEvaluator
		log.Printf("Loaded rule: %s (%s)", rule.Title, rule.ID)
		count++
	}

	sd.mu.Lock()
	sd.evaluators = evaluators
	sd.mu.Unlock()

	fmt.Printf("Loaded %d Sigma rules from %s\n", count, enabledDir)
	return nil
}

// ReloadRules signals the reload loop; a pending signal is enough.
func (sd *Detector) ReloadRules() {
	select {
	case sd.reloadChan <- true:
	default:
	}
}

func loadRuleFile(filePath string) (sigma.Rule, *evaluator.RuleEvaluator, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return sigma.Rule{}, nil, err
	}

	if sigma.InferFileType(content) != sigma.RuleFile {
		return sigma.Rule{}, nil, fmt.Errorf("file is not a Sigma rule: %s", filePath)
	}

	rule, err := sigma.ParseRule(content)
	if err != nil {
		return sigma.Rule{}, nil, err
	}

	ruleEvaluator := evaluator.ForRule(rule,
		evaluator.WithConfig(fieldConfig()),
		evaluator.WithPlaceholderExpander(func(ctx context.Context, placeholderName string) ([]string, error) {
			return nil, nil
		}),
		evaluator.CountImplementation(func(ctx context.Context, key evaluator.GroupedByValues) (float64, error) {
			return 0, nil
		}),
		evaluator.SumImplementation(func(ctx context.Context, key evaluator.GroupedByValues, value float64) (float64, error) {
			return 0, nil
		}),
		evaluator.AverageImplementation(func(ctx context.Context, key evaluator.GroupedByValues, value float64) (float64, error) {
			return 0, nil
		}))

	return rule, ruleEvaluator, nil
}

// Run processes reload signals until the context is cancelled.
func (sd *Detector) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-sd.reloadChan:
			fmt.Println("Reloading Sigma rules...")
			if err := sd.LoadRules(); err != nil {
				fmt.Printf("Error reloading rules: %v\n", err)
			}
		}
	}
}

// CheckEvent checks if an event matches any Sigma rules and returns detailed match results
func (sd *Detector) CheckEvent(ctx context.Context, event map[string]interface{}) []MatchResult {
	sd.mu.RLock()
	evaluators := sd.evaluators
	sd.mu.RUnlock()

	var results []MatchResult

	for _, ruleEvaluator := range evaluators {
		result, err := ruleEvaluator.Matches(ctx, event)
		if err != nil {
			log.Printf("Error evaluating rule %s: %v", ruleEvaluator.Rule.ID, err)
			continue
		}

		if result.Match {
			var matchConditions []string
			for k, v := range result.SearchResults {
				if v {
					matchConditions = append(matchConditions, k)
				}
			}

			results = append(results, MatchResult{
				Match: true,
				Rule:  ruleEvaluator.Rule,
				MatchDetails: []string{
					fmt.Sprintf("Matched conditions: %s", strings.Join(matchConditions, ", ")),
				},
			})
			log.Printf("Event matched rule %s with conditions %s", ruleEvaluator.Rule.ID, strings.Join(matchConditions, ", "))
		}
	}

	return results
}

// StoreMatch stores a rule match in the database
func (sd *Detector) StoreMatch(match MatchResult, event map[string]interface{}) error {
	eventID, ok := event["id"].(int64)
	if !ok {
		return fmt.Errorf("event has no valid ID")
	}

	var path, processName, username string
	if p, ok := event["TargetFilename"].(string); ok {
		path = p
	}
	if name, ok := event["Image"].(string); ok {
		processName = name
	}
	if user, ok := event["User"].(string); ok {
		username = user
	}

	matchDetailsJSON, _ := json.Marshal(match.MatchDetails)

	severity := match.Rule.Level
	if severity == "" {
		severity = "medium"
	}

	query := `
	INSERT INTO rule_matches (
		event_id, rule_id, rule_name, severity, path,
		process_name, username, match_details, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := sd.db.Exec(query,
		eventID,
		match.Rule.ID,
		match.Rule.Title,
		severity,
		path,
		processName,
		username,
		string(matchDetailsJSON),
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert match: %v", err)
	}

	log.Printf("Stored match for rule %s: %s", match.Rule.ID, match.Rule.Title)
	return nil
}

// RuleCount returns the number of loaded rules.
func (sd *Detector) RuleCount() int {
	sd.mu.RLock()
	defer sd.mu.RUnlock()
	return len(sd.evaluators)
}

// Close stops the file watcher.
func (sd *Detector) Close() error {
	return sd.watcher.Close()
}
