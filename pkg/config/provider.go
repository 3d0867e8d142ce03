package config

import (
	"fmt"
	"os"

	"github.com/ctxbridge/ctxbridge/pkg/collaborator"
)

// BuildCollaborator creates a downstream collaborator client based on
// configuration precedence: CLI flags > environment variables > config
// file > defaults.
func BuildCollaborator(cliModel, cliBaseURL, cliAPIKey, defaultModel string) (*collaborator.Client, error) {
	finalModel := cliModel
	finalBaseURL := cliBaseURL
	finalAPIKey := cliAPIKey

	if finalAPIKey == "" {
		finalAPIKey = os.Getenv("OPENAI_API_KEY")
	}
	if finalBaseURL == "" {
		finalBaseURL = os.Getenv("OPENAI_BASE_URL")
	}

	collabConfigFromFile := GetCollaborator()

	if collabConfigFromFile != nil {
		if cliModel == "" || cliModel == defaultModel {
			if configFileModel := collabConfigFromFile.GetModel(); configFileModel != "" {
				finalModel = configFileModel
			}
		}
		if finalBaseURL == "" {
			if configFileBaseURL := collabConfigFromFile.GetBaseURL(); configFileBaseURL != "" {
				finalBaseURL = configFileBaseURL
			}
		}
		if finalAPIKey == "" {
			if configFileAPIKey := collabConfigFromFile.GetAPIKey(); configFileAPIKey != "" {
				finalAPIKey = configFileAPIKey
			}
		}
	}

	if finalModel == "" {
		finalModel = defaultModel
	}

	if finalAPIKey == "" {
		return nil, fmt.Errorf("API key is required. Set OPENAI_API_KEY environment variable, use -api-key flag, or configure in ~/.ctxbridge/config.json")
	}

	client, err := collaborator.New(finalAPIKey, finalBaseURL, collaborator.WithModel(finalModel))
	if err != nil {
		return nil, fmt.Errorf("failed to create collaborator client: %w", err)
	}

	return client, nil
}
