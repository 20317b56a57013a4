// Package seed loads question banks from YAML files into the store.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/terra-clan/interview-engine/internal/interview"
	"github.com/terra-clan/interview-engine/internal/models"
)

// Store is the persistence seeding needs
type Store interface {
	GetDomainByName(ctx context.Context, name string) (*models.Domain, error)
	CreateDomain(ctx context.Context, d *models.Domain) error
	UpsertDomainConfiguration(ctx context.Context, c *models.DomainConfiguration) error
	CreateQuestion(ctx context.Context, q *models.Question) error
	LogActivity(ctx context.Context, activityType, description string) error
}

// Bank is one parsed question-bank file
type Bank struct {
	File      string
	Domain    string
	LogoURL   string
	Tiers     models.TierCounts
	Questions []*models.Question
}

// Result reports what Apply did
type Result struct {
	Created []string
	Skipped []string
}

// LoadDir parses every *.yaml and *.yml file in dir, sorted by file name
func LoadDir(dir string) ([]*Bank, error) {
	slog.Info("loading question banks from directory", "dir", dir)

	var files []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", pattern, err)
		}
		files = append(files, matches...)
	}
	sort.Strings(files)

	banks := make([]*Bank, 0, len(files))
	for _, file := range files {
		bank, err := LoadFile(file)
		if err != nil {
			return nil, err
		}
		banks = append(banks, bank)
	}

	slog.Info("question banks loaded", "count", len(banks))
	return banks, nil
}

// LoadFile parses and validates one question-bank file
func LoadFile(path string) (*Bank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var bf bankFile
	if err := yaml.Unmarshal(data, &bf); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}

	bank, err := bf.toBank()
	if err != nil {
		return nil, fmt.Errorf("invalid question bank %s: %w", filepath.Base(path), err)
	}
	bank.File = path
	return bank, nil
}

func (bf *bankFile) toBank() (*Bank, error) {
	name := strings.TrimSpace(bf.Domain)
	if name == "" {
		return nil, fmt.Errorf("domain is required")
	}

	tiers := models.TierCounts{}
	for key, n := range bf.Configuration {
		tier, err := models.ParseDifficulty(key)
		if err != nil {
			return nil, fmt.Errorf("configuration: %w", err)
		}
		tiers[tier] = n
	}
	if err := tiers.Validate(); err != nil {
		return nil, fmt.Errorf("configuration: %w", err)
	}

	bank := &Bank{Domain: name, LogoURL: bf.LogoURL, Tiers: tiers}
	available := models.TierCounts{}
	for i, q := range bf.Questions {
		tier, err := models.ParseDifficulty(q.Difficulty)
		if err != nil {
			return nil, fmt.Errorf("questions[%d]: %w", i, err)
		}
		text := strings.TrimSpace(q.Text)
		ideal := strings.TrimSpace(q.IdealAnswer)
		if text == "" || ideal == "" {
			return nil, fmt.Errorf("questions[%d]: text and ideal_answer are required", i)
		}
		available[tier]++
		bank.Questions = append(bank.Questions, &models.Question{
			Text:        text,
			IdealAnswer: ideal,
			AudioURL:    strings.TrimSpace(q.AudioURL),
			Difficulty:  tier,
		})
	}

	for _, tier := range models.AllDifficulties {
		if tiers[tier] > available[tier] {
			return nil, fmt.Errorf("configuration draws %d %s questions but the bank holds %d",
				tiers[tier], tier, available[tier])
		}
	}

	return bank, nil
}

// Apply inserts every bank whose domain does not exist yet. Banks are matched to
// existing domains by name, case-insensitively, so re-running is a no-op.
func Apply(ctx context.Context, store Store, banks []*Bank) (*Result, error) {
	result := &Result{}

	for _, bank := range banks {
		existing, err := store.GetDomainByName(ctx, bank.Domain)
		if err != nil {
			return result, fmt.Errorf("failed to look up domain %q: %w", bank.Domain, err)
		}
		if existing != nil {
			slog.Debug("domain already seeded", "domain", bank.Domain)
			result.Skipped = append(result.Skipped, bank.Domain)
			continue
		}

		if err := insert(ctx, store, bank); err != nil {
			return result, err
		}
		result.Created = append(result.Created, bank.Domain)

		slog.Info("question bank seeded",
			"domain", bank.Domain,
			"questions", len(bank.Questions),
			"per_session", bank.Tiers.Total(),
		)
	}

	return result, nil
}

func insert(ctx context.Context, store Store, bank *Bank) error {
	now := time.Now().UTC()

	d := &models.Domain{
		ID:        uuid.New().String(),
		Name:      bank.Domain,
		LogoURL:   bank.LogoURL,
		CreatedAt: now,
	}
	if err := store.CreateDomain(ctx, d); err != nil {
		return fmt.Errorf("failed to create domain %q: %w", bank.Domain, err)
	}

	if err := store.UpsertDomainConfiguration(ctx, &models.DomainConfiguration{
		DomainID:      d.ID,
		QuestionsPerE: bank.Tiers[models.DifficultyE],
		QuestionsPerD: bank.Tiers[models.DifficultyD],
		QuestionsPerC: bank.Tiers[models.DifficultyC],
		QuestionsPerB: bank.Tiers[models.DifficultyB],
		QuestionsPerA: bank.Tiers[models.DifficultyA],
		CreatedAt:     now,
		UpdatedAt:     now,
	}); err != nil {
		return fmt.Errorf("failed to configure domain %q: %w", bank.Domain, err)
	}

	for _, q := range bank.Questions {
		c := *q
		c.ID = uuid.New().String()
		c.DomainID = d.ID
		c.CreatedAt = now
		if err := store.CreateQuestion(ctx, &c); err != nil {
			return fmt.Errorf("failed to create question for %q: %w", bank.Domain, err)
		}
	}

	if err := store.LogActivity(ctx, interview.ActivityDomainCreated, fmt.Sprintf("Domain '%s' was seeded", bank.Domain)); err != nil {
		slog.Warn("failed to log activity", "error", err)
	}
	return nil
}

// --- YAML file structs ---

// bankFile represents the YAML structure of a question-bank file
type bankFile struct {
	Domain        string         `yaml:"domain"`
	LogoURL       string         `yaml:"logo_url"`
	Configuration map[string]int `yaml:"configuration"`
	Questions     []questionFile `yaml:"questions"`
}

type questionFile struct {
	Difficulty  string `yaml:"difficulty"`
	Text        string `yaml:"text"`
	IdealAnswer string `yaml:"ideal_answer"`
	AudioURL    string `yaml:"audio_url"`
}
