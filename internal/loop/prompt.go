package loop

import (
	"strings"
	"text/template"
)

// DefaultCompletionSignal is the phrase the agent emits when it judges the
// whole task finished.
const DefaultCompletionSignal = "CONTINUOUS_CLAUDE_PROJECT_COMPLETE"

// PromptData holds the variables injected into the iteration prompt.
type PromptData struct {
	Task             string // The overall objective, verbatim from the user.
	CompletionSignal string // Exact phrase that reports full completion.
	NotesPath        string // Shared notes file, relative to the repo root.
	HasNotes         bool   // Notes exist from an earlier iteration.
	Notes            string // Notes contents, included verbatim.
}

// iterationPromptTemplate is parsed once at init time so rendering is cheap.
var iterationPromptTemplate = template.Must(template.New("iterationPrompt").Parse(iterationPromptTemplateText))

const iterationPromptTemplateText = `## CONTINUOUS WORKFLOW CONTEXT

You are running one iteration of a continuous development loop. Each iteration
ends in a pull request that must pass CI before it is merged, after which the
next iteration starts from the updated main line.

You do not need to finish the whole task in this iteration. Make meaningful,
self-contained progress, keep the code building and the tests passing, and
leave clear notes for whoever picks up next.

## TASK

{{.Task}}

## COMPLETION

Only when the ENTIRE task above is done, with nothing meaningful left to do,
include this exact phrase in your final response:

    {{.CompletionSignal}}

Never emit it for partial progress. It stops the loop once it has been seen in
several consecutive iterations.

## SHARED NOTES
{{if .HasNotes}}
Notes left by previous iterations, from ` + "`{{.NotesPath}}`" + `:

{{.Notes}}

Update ` + "`{{.NotesPath}}`" + ` before you finish: record what you did, what is left,
and anything the next iteration must know. Keep it concise and remove stale
entries.
{{else}}
There are no notes yet. Create ` + "`{{.NotesPath}}`" + ` before you finish: record what
you did, what is left, and anything the next iteration must know.
{{end}}`

// RenderPrompt renders the iteration prompt. The output depends only on
// data.
func RenderPrompt(data PromptData) (string, error) {
	var b strings.Builder
	if err := iterationPromptTemplate.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

// commitPrompt instructs the restricted agent to commit everything. The
// title/body layout matches SplitCommitMessage: one summary line, two blank
// lines, then the description.
const commitPrompt = `Review every uncommitted change in this git repository, including
modified, deleted and untracked files.

Write a commit message consisting of:
1. A one-line summary of the change (imperative mood, under 72 characters).
2. Two blank lines.
3. A detailed description of what changed and why.

Do not add footers, trailers or attribution lines.

Stage all changes and create a single commit with that message. When you are
done, ` + "`git status --porcelain`" + ` must print nothing.`
