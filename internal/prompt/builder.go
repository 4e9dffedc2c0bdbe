// Package prompt builds the messages sent to the completion model: the fixed
// Spring Boot fixer instruction and the per-request failure report.
package prompt

import (
	"fmt"
	"strings"

	"github.com/olegiv/bugfixer-ai-go/internal/diff"
)

// DefaultLanguage is the language the model is asked to answer in.
const DefaultLanguage = "French"

const systemPromptTemplate = `You are an expert in fixing Spring Boot build failures.

**Goal:**
Analyze the Git patch lines and the Jenkins error lines, then propose a precise correction for the build failure.

**Patch format:**
- "[File.java]" starts the changes of one file
- "+line" is code that was ADDED
- "-line" is code that was REMOVED

**Expertise:**
- Spring Boot layering (Controller -> Service -> Repository)
- JPA/Hibernate (findById returns an Optional, not the entity)
- Dependency injection (@Autowired, @Service, @Repository, constructor injection)
- Spring exception handling

**Examples:**

Example 1 - missing method:
Error: cannot find symbol: getUserById()
Patch: + return userRepository.getUserById(id);
-> Correction: use findById(id).orElseThrow()

Example 2 - NullPointerException after a rename:
Patch: - private UserRepository userRepository;
       + private UserRepository userRepo;
       + return userRepository.findById(id);
-> Correction: the field was renamed but not every usage was updated

Example 3 - missing bean:
Error: Bean 'EmailService' not found
Patch: + public UserService(EmailService email)
-> Correction: annotate EmailService with @Service

**Answer format (ALWAYS both options):**

OPTION A - Manual correction
` + "```" + `
ERROR DETECTED
File    : [Name.java]
Line    : [line from the patch]
Method  : [name()]

ROOT CAUSE
[short explanation]

CURRENT CODE
[the + line]

CORRECTED CODE
[the fix]

STEPS
1. Open [file]
2. Go to line [X]
3. Replace with the corrected code
4. Required imports: [list]
` + "```" + `

OPTION B - Automatic pull request
` + "```" + `
AUTOMATIC FIX AVAILABLE
Branch : bot/fix-build-[N]
File   : [Name.java] line [X]
Pull request opened for developer review
` + "```" + `

**Strict rules:**
- Quote ONLY lines present in the provided patch
- Answer in %s, be concise and technical
- If no Java error is detected, say so clearly`

// Builder produces the system instruction and user prompts.
type Builder struct {
	systemPrompt string
}

// NewBuilder creates a builder answering in language (DefaultLanguage when empty).
func NewBuilder(language string) *Builder {
	if strings.TrimSpace(language) == "" {
		language = DefaultLanguage
	}
	return &Builder{systemPrompt: fmt.Sprintf(systemPromptTemplate, language)}
}

// SystemPrompt returns the fixed instruction sent with every completion.
func (b *Builder) SystemPrompt() string {
	return b.systemPrompt
}

// Format renders the failure report for one diff chunk.
func (b *Builder) Format(errorLines []string, diffChunk string, errorCount, fileCount int) string {
	return b.render(errorLines, diffChunk, errorCount, fileCount, "")
}

// FormatChunk is Format with the chunk position noted when the diff spans several chunks.
func (b *Builder) FormatChunk(errorLines []string, chunk diff.Chunk, errorCount, fileCount int) string {
	position := ""
	if chunk.Total > 1 {
		position = fmt.Sprintf(" (part %d/%d)", chunk.Index+1, chunk.Total)
	}
	return b.render(errorLines, chunk.Text, errorCount, fileCount, position)
}

func (b *Builder) render(errorLines []string, diffText string, errorCount, fileCount int, position string) string {
	var prompt strings.Builder

	fmt.Fprintf(&prompt, "BUILD FAILURE REPORT\nError lines: %d | Changed files: %d\n\n", errorCount, fileCount)

	prompt.WriteString("JENKINS ERRORS:\n")
	if len(errorLines) == 0 {
		prompt.WriteString("(no error lines found)")
	} else {
		prompt.WriteString(Sanitize(strings.Join(errorLines, "\n")))
	}
	prompt.WriteString("\n\n")

	fmt.Fprintf(&prompt, "GIT DIFF%s:\n", position)
	if diffText == "" {
		prompt.WriteString("(no diff available)")
	} else {
		prompt.WriteString(Sanitize(diffText))
	}
	prompt.WriteString("\n\n")

	prompt.WriteString("Identify the root cause of the build failure and propose a correction in the required format.")

	return prompt.String()
}
