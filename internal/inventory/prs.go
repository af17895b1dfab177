package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"prdash/internal/config"
	"prdash/internal/model"
)

// ListPullRequests shells out to the GitHub CLI in the project directory.
// Projects without GitHub integration disable this in config and get an
// empty list instead of a hard dependency on gh.
func ListPullRequests(ctx context.Context, projectDir string, cfg config.Project) ([]model.PullRequest, error) {
	if cfg.GitHub.Disabled {
		return []model.PullRequest{}, nil
	}
	cmd := exec.CommandContext(ctx, "gh", "pr", "list", "--json", "number,title,state,headRefName,url")
	cmd.Dir = projectDir
	out, err := cmd.Output()
	if err != nil {
		detail := err.Error()
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			detail = strings.TrimSpace(string(exitErr.Stderr))
		}
		return nil, model.WrapIO("gh pr list", fmt.Errorf("%s", detail))
	}

	var raw []struct {
		Number      int    `json:"number"`
		Title       string `json:"title"`
		State       string `json:"state"`
		HeadRefName string `json:"headRefName"`
		URL         string `json:"url"`
	}
	if err := json.Unmarshal(out, &raw); err != nil {
		return nil, model.WrapIO("parse gh pr list output", err)
	}
	prs := make([]model.PullRequest, 0, len(raw))
	for _, item := range raw {
		prs = append(prs, model.PullRequest{
			Number:  item.Number,
			Title:   item.Title,
			State:   strings.ToLower(strings.TrimSpace(item.State)),
			HeadRef: item.HeadRefName,
			URL:     item.URL,
		})
	}
	return prs, nil
}
