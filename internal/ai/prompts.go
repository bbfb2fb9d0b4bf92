package ai

import (
	_ "embed"
	"text/template"
)

//go:embed prompts/job_scoring.md
var jobScoringPromptRaw string

// JobScoringTemplate is the parsed prompt template for job scoring.
// Parsed once at package init; reused on every Score call.
var JobScoringTemplate = template.Must(template.New("job_scoring").Parse(jobScoringPromptRaw))
