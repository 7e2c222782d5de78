package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"bugtracker/internal/config"
	"bugtracker/internal/models"
	"bugtracker/internal/observability"
	"bugtracker/internal/serviceinterfaces"
	contextutils "bugtracker/internal/utils"
	"bugtracker/internal/version"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// linearPriority maps severity onto Linear's 0 (none) to 4 (low) scale
var linearPriority = map[models.Severity]int{
	models.SeverityCritical: 1,
	models.SeverityHigh:     2,
	models.SeverityMedium:   3,
	models.SeverityLow:      4,
}

const issueCreateMutation = `
	mutation IssueCreate($input: IssueCreateInput!) {
		issueCreate(input: $input) {
			success
			issue {
				id
				identifier
				title
				url
			}
		}
	}
`

const teamsQuery = `
	query Teams {
		teams {
			nodes {
				id
				name
				key
			}
		}
	}
`

// graphQLError is one entry of a GraphQL "errors" array
type graphQLError struct {
	Message string `json:"message"`
}

// LinearService exports bugs to Linear as issues
type LinearService struct {
	cfg        config.LinearConfig
	httpClient *http.Client
	logger     *observability.Logger
	apiURL     string
}

// NewLinearService creates a new Linear service instance
func NewLinearService(cfg *config.Config, logger *observability.Logger) *LinearService {
	return NewLinearServiceWithURL(cfg, logger, cfg.Linear.APIURL)
}

// NewLinearServiceWithURL creates a LinearService against a custom API URL
func NewLinearServiceWithURL(cfg *config.Config, logger *observability.Logger, apiURL string) *LinearService {
	if cfg == nil {
		panic("config cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	if apiURL == "" {
		apiURL = config.DefaultLinearAPIURL
	}
	return &LinearService{
		cfg: cfg.Linear,
		httpClient: &http.Client{
			Timeout: config.IntegrationTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport,
				otelhttp.WithSpanOptions(trace.WithSpanKind(trace.SpanKindClient)),
			),
		},
		logger: logger,
		apiURL: apiURL,
	}
}

// IsEnabled reports whether export is configured
func (s *LinearService) IsEnabled() bool {
	return s.cfg.Enabled && s.cfg.APIKey != "" && s.cfg.TeamID != ""
}

// do posts one GraphQL request and decodes its data into out
func (s *LinearService) do(ctx context.Context, query string, variables map[string]interface{}, out interface{}) error {
	payload := map[string]interface{}{"query": query}
	if variables != nil {
		payload["variables"] = variables
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return contextutils.WrapError(err, "failed to marshal Linear request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return contextutils.WrapError(err, "failed to create Linear request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", s.cfg.APIKey)
	req.Header.Set("User-Agent", config.DefaultServiceName+"/"+version.Version)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return contextutils.WrapWithCode(err, contextutils.ErrorCodeIntegrationFailed, "failed to reach Linear")
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			s.logger.Warn(ctx, "Failed to close response body", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return contextutils.WrapWithCode(err, contextutils.ErrorCodeIntegrationFailed, "failed to read Linear response")
	}
	if resp.StatusCode != http.StatusOK {
		return contextutils.Detailf(contextutils.ErrIntegrationFailed, "Linear API returned status %d: %s",
			resp.StatusCode, contextutils.Truncate(string(body), 200))
	}

	envelope := struct {
		Data   json.RawMessage `json:"data"`
		Errors []graphQLError  `json:"errors,omitempty"`
	}{}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return contextutils.WrapWithCode(err, contextutils.ErrorCodeIntegrationFailed, "failed to decode Linear response")
	}
	if len(envelope.Errors) > 0 {
		return contextutils.Detailf(contextutils.ErrIntegrationFailed, "Linear API error: %s", envelope.Errors[0].Message)
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return contextutils.WrapWithCode(err, contextutils.ErrorCodeIntegrationFailed, "failed to decode Linear data")
	}
	return nil
}

// resolveTeamID returns the configured team as an id, looking it up by name or key when it is not a UUID
func (s *LinearService) resolveTeamID(ctx context.Context) (string, error) {
	team := strings.TrimSpace(s.cfg.TeamID)
	if _, err := uuid.Parse(team); err == nil {
		return team, nil
	}

	var data struct {
		Teams struct {
			Nodes []struct {
				ID   string `json:"id"`
				Name string `json:"name"`
				Key  string `json:"key"`
			} `json:"nodes"`
		} `json:"teams"`
	}
	if err := s.do(ctx, teamsQuery, nil, &data); err != nil {
		return "", err
	}
	for _, node := range data.Teams.Nodes {
		if strings.EqualFold(node.Name, team) || strings.EqualFold(node.Key, team) {
			return node.ID, nil
		}
	}
	return "", contextutils.Detailf(contextutils.ErrInvalidInput, "Linear team %q not found", team)
}

// issueDescription renders the bug as Markdown for the issue body
func issueDescription(bug *models.BugReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", bug.Description)
	if bug.ReproductionSteps.Valid {
		fmt.Fprintf(&b, "## Steps to reproduce\n\n%s\n\n", bug.ReproductionSteps.String)
	}
	if bug.LogContext.Valid {
		fmt.Fprintf(&b, "## Logs\n\n```\n%s\n```\n\n", bug.LogContext.String)
	}
	fmt.Fprintf(&b, "---\n\n- Bug: `%s`\n- Reporter: %s\n- Status: %s\n", bug.ID, bug.Reporter, bug.Status)
	if bug.Category != models.CategoryUnset {
		fmt.Fprintf(&b, "- Category: %s\n", bug.Category)
	}
	fmt.Fprintf(&b, "- Reported: %s\n", bug.ReportedAt.UTC().Format(models.NoteTimeLayout))
	if bug.SystemInfo != "" {
		fmt.Fprintf(&b, "- System: %s\n", bug.SystemInfo)
	}
	return b.String()
}

// ExportBug creates a Linear issue carrying the bug's details
func (s *LinearService) ExportBug(ctx context.Context, bug *models.BugReport) (result0 *models.ExternalIssue, err error) {
	ctx, span := observability.TraceIntegrationFunction(ctx, "linear_export",
		observability.AttributeBugID(bug.ID),
		observability.AttributeSeverity(string(bug.Severity)),
	)
	defer observability.FinishSpan(span, &err)

	if !s.IsEnabled() {
		return nil, contextutils.Detailf(contextutils.ErrIntegrationDisabled, "Linear export is not configured")
	}

	teamID, err := s.resolveTeamID(ctx)
	if err != nil {
		return nil, err
	}

	input := map[string]interface{}{
		"teamId":      teamID,
		"title":       contextutils.Truncate(bug.Title, 250),
		"description": issueDescription(bug),
		"priority":    linearPriority[bug.Severity],
	}
	var data struct {
		IssueCreate struct {
			Success bool `json:"success"`
			Issue   struct {
				ID         string `json:"id"`
				Identifier string `json:"identifier"`
				Title      string `json:"title"`
				URL        string `json:"url"`
			} `json:"issue"`
		} `json:"issueCreate"`
	}
	if err := s.do(ctx, issueCreateMutation, map[string]interface{}{"input": input}, &data); err != nil {
		s.logger.Error(ctx, "Linear issue creation failed", err, map[string]interface{}{"bug_id": bug.ID})
		return nil, err
	}
	if !data.IssueCreate.Success {
		return nil, contextutils.Detailf(contextutils.ErrIntegrationFailed, "Linear did not create the issue")
	}

	issue := &models.ExternalIssue{
		ID:    data.IssueCreate.Issue.Identifier,
		URL:   data.IssueCreate.Issue.URL,
		Title: data.IssueCreate.Issue.Title,
	}
	if issue.ID == "" {
		issue.ID = data.IssueCreate.Issue.ID
	}
	span.SetAttributes(attribute.String("linear.issue_id", issue.ID))
	s.logger.Info(ctx, "Exported bug to Linear", map[string]interface{}{
		"bug_id":    bug.ID,
		"issue_id":  issue.ID,
		"issue_url": issue.URL,
	})
	return issue, nil
}

var _ serviceinterfaces.IssueExporter = (*LinearService)(nil)
