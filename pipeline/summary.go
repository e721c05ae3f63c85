package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"pdfchat/model"
)

// SummaryResult is the rich summary shown on the document summary page.
type SummaryResult struct {
	Summary         string
	KeyFindings     string
	Introduction    string
	TableOfContents string
}

// QuickResult is the lightweight upload-time variant.
type QuickResult struct {
	Summary         string
	CommonQuestions string
}

// Summary generates document synopses with hard length and count limits
// enforced by post-processing rather than by trusting the model.
type Summary struct {
	completer model.Completer
	logger    *slog.Logger
}

func NewSummary(completer model.Completer) *Summary {
	return &Summary{
		completer: completer,
		logger:    slog.Default(),
	}
}

// Generate produces the full summary set. The abstract and the key findings
// are independent and run concurrently; a failure in one field leaves the
// others intact.
func (s *Summary) Generate(ctx context.Context, fullText, title string) SummaryResult {
	introText := head(fullText, 3000)

	var res SummaryResult
	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		start := time.Now()
		res.Summary = s.abstract(ctx, fullText, introText, title)
		s.logger.Info("summary abstract generated", "title", title, "took", time.Since(start))
	}()
	go func() {
		defer wg.Done()
		start := time.Now()
		res.KeyFindings = s.keyFindings(ctx, fullText, introText, title)
		s.logger.Info("key findings generated", "title", title, "took", time.Since(start))
	}()
	wg.Wait()

	introPrompt := fmt.Sprintf(`Please provide an introduction overview for this document titled %q.
Explain what the document is about, its purpose, and what readers can expect to learn.
Keep it engaging and informative (1-2 paragraphs).

Document content:
%s`, title, introText)

	introduction, err := s.completer.Complete(ctx, introPrompt, head(fullText, 2000), model.DefaultOptions())
	if err != nil {
		s.logger.Warn("introduction generation failed", "title", title, "error", err)
	}
	res.Introduction = strings.TrimSpace(introduction)

	tocPrompt := fmt.Sprintf(`Please extract the table of contents or main sections from this document titled %q.
If no clear table of contents exists, create a logical outline of the main sections/topics covered.
Format as a numbered or bulleted list.

Document content:
%s`, title, introText)

	toc, err := s.completer.Complete(ctx, tocPrompt, head(fullText, 2000), model.DefaultOptions())
	if err != nil {
		s.logger.Warn("table of contents generation failed", "title", title, "error", err)
	}
	res.TableOfContents = strings.TrimSpace(toc)

	return res
}

// Quick produces the upload-time summary and common questions from the first
// chunks of the document. Both calls are independent and run concurrently.
func (s *Summary) Quick(ctx context.Context, chunks []string, title string) QuickResult {
	take := len(chunks)
	if take > 3 {
		take = 3
	}
	contextText := strings.Join(chunks[:take], "\n\n")

	var res QuickResult
	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		start := time.Now()

		prompt := fmt.Sprintf(`Please provide a brief summary of this document titled %q.
Include:
1. Main topic/purpose (1-2 sentences)
2. Key points (3-5 bullet points)
3. Document type/category

Content:
%s`, title, contextText)

		summary, err := s.completer.Complete(ctx, prompt, contextText, model.DefaultOptions())
		if err != nil {
			s.logger.Warn("quick summary generation failed", "title", title, "error", err)
			return
		}
		res.Summary = strings.TrimSpace(summary)
		s.logger.Info("quick summary generated", "title", title, "took", time.Since(start))
	}()
	go func() {
		defer wg.Done()
		start := time.Now()

		prompt := fmt.Sprintf(`Generate exactly 5 questions a reader is most likely to ask about this document titled %q.

STRICT REQUIREMENTS:
- Exactly 5 questions, one per line
- Format each as: "• [question text]"
- Questions must be answerable from the document content
- NO explanations, NO answers

Content:
%s`, title, contextText)

		questions, err := s.completer.Complete(ctx, prompt, contextText, model.DefaultOptions())
		if err != nil {
			s.logger.Warn("common questions generation failed", "title", title, "error", err)
			return
		}
		// never pad questions with invented placeholders
		res.CommonQuestions = truncateFindings(strings.TrimSpace(questions), 5)
		s.logger.Info("common questions generated", "title", title, "took", time.Since(start))
	}()
	wg.Wait()

	return res
}

func (s *Summary) abstract(ctx context.Context, fullText, introText, title string) string {
	prompt := fmt.Sprintf(`You must write a summary of this document titled %q that is STRICTLY between 50-60 words.

CRITICAL REQUIREMENTS:
- Count every single word carefully
- Must be between 50-60 words (minimum 50, maximum 60)
- Focus on main purpose and key conclusions only
- Professional and clear tone
- Use concise, impactful sentences
- NO filler words or unnecessary phrases
- Stop immediately once you reach 50-60 words

Document content:
%s

Write a summary between 50-60 words ONLY:`, title, introText)

	summary, err := s.completer.Complete(ctx, prompt, head(fullText, 2000), model.DefaultOptions())
	if err != nil {
		s.logger.Warn("abstract generation failed", "title", title, "error", err)
		return ""
	}
	summary = strings.TrimSpace(summary)

	switch wc := countWords(summary); {
	case wc < 50:
		s.logger.Warn("abstract under word minimum, regenerating", "title", title, "words", wc)

		retryPrompt := fmt.Sprintf("Write a summary of %q in EXACTLY 55 words. Focus on key points and conclusions.\nContent: %s",
			title, head(introText, 1000))
		retry, err := s.completer.Complete(ctx, retryPrompt, head(fullText, 1000), model.DefaultOptions())
		if err != nil {
			s.logger.Warn("abstract retry failed", "title", title, "error", err)
			return summary
		}
		return s.enforceWordLimit(strings.TrimSpace(retry), 55)
	case wc > 60:
		return s.enforceWordLimit(summary, 60)
	default:
		return summary
	}
}

func (s *Summary) keyFindings(ctx context.Context, fullText, introText, title string) string {
	prompt := fmt.Sprintf(`Extract EXACTLY 5 key findings from this document titled %q.

STRICT REQUIREMENTS:
- Must be exactly 5 bullet points (not 3, not 4, not 6, not 7 - EXACTLY 5)
- Each point should be concise (1 sentence maximum)
- Focus ONLY on the most critical insights and conclusions
- Format each as: "• [finding text]"
- NO sub-points, NO nested lists, NO additional explanations
- Count your bullet points: 1, 2, 3, 4, 5 - then STOP
- Each finding should be distinct and valuable

Document content:
%s

Provide exactly 5 key findings (count them as you write):`, title, introText)

	findings, err := s.completer.Complete(ctx, prompt, head(fullText, 2000), model.DefaultOptions())
	if err != nil {
		s.logger.Warn("key findings generation failed", "title", title, "error", err)
		return ""
	}
	findings = strings.TrimSpace(findings)

	if count := len(extractFindings(findings)); count != 5 {
		s.logger.Warn("retrying for exactly 5 findings", "title", title, "got", count)

		retryPrompt := fmt.Sprintf(`URGENT: You MUST provide exactly 5 key findings. No more, no less.

Document: %q
Content: %s

Format EXACTLY like this:
• Finding 1 text here
• Finding 2 text here
• Finding 3 text here
• Finding 4 text here
• Finding 5 text here

Provide exactly 5 bullet points:`, title, head(introText, 1500))

		retry, err := s.completer.Complete(ctx, retryPrompt, head(fullText, 1500), model.DefaultOptions())
		if err != nil {
			s.logger.Warn("key findings retry failed", "title", title, "error", err)
		} else {
			findings = strings.TrimSpace(retry)
		}
	}

	return s.enforceFindingsLimit(findings, 5)
}

var findingMarkerRe = regexp.MustCompile(`^(?:[•\-*]|\d+\.)`)

// extractFindings returns the lines that look like bullet or numbered items.
func extractFindings(text string) []string {
	var findings []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if findingMarkerRe.MatchString(line) {
			findings = append(findings, line)
		}
	}
	return findings
}

// enforceWordLimit truncates text to at most limit words. Text already under
// the limit passes through unchanged: padding with invented content is worse
// than being short.
func (s *Summary) enforceWordLimit(text string, limit int) string {
	words := strings.Fields(text)
	if len(words) <= limit {
		if len(words) < limit {
			s.logger.Warn("generated text under word limit", "words", len(words), "expected", limit)
		}
		return text
	}
	return strings.Join(words[:limit], " ")
}

// enforceFindingsLimit keeps the first limit bullet lines. Synthetic
// placeholder bullets are a last resort, used only when the model produced no
// findings at all.
func (s *Summary) enforceFindingsLimit(text string, limit int) string {
	findings := extractFindings(text)

	if len(findings) > limit {
		s.logger.Warn("truncating findings", "got", len(findings), "limit", limit)
		findings = findings[:limit]
	}
	if len(findings) == 0 {
		for i := 1; i <= limit; i++ {
			findings = append(findings, fmt.Sprintf("• Key finding %d will be extracted from document analysis.", i))
		}
	}
	return strings.Join(findings, "\n")
}

// truncateFindings keeps at most limit bullet lines and never pads.
func truncateFindings(text string, limit int) string {
	findings := extractFindings(text)
	if len(findings) == 0 {
		return text
	}
	if len(findings) > limit {
		findings = findings[:limit]
	}
	return strings.Join(findings, "\n")
}

func countWords(text string) int {
	return len(strings.Fields(text))
}

func head(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
