package classify

import "fmt"

func analysisPrompt(title, category, body string) string {
	return fmt.Sprintf(`Analyze this news item and classify it. Do not write any new content.

Title: %s
Category: %s
Content: %s

Pick exactly one class:
- CONSTRUCTIVE: already positive or inspiring (achievements, innovation, celebrations, progress)
- REFRAMABLE: negative but can be retold around responses and solutions (disasters, conflicts, scandals)
- HARMFUL: extremely traumatic, must be skipped (graphic violence, explicit harm)

Answer with exactly three lines:
CATEGORY: CONSTRUCTIVE|REFRAMABLE|HARMFUL
SENTIMENT: POSITIVE|NEGATIVE|NEUTRAL
REASON: one short sentence

Nothing else.`, title, category, body)
}

func rewritePrompt(title, body string, limit int, detailed bool) string {
	length := "4-6 sentences"
	if detailed {
		length = "15-20 sentences"
	}
	return fmt.Sprintf(`Retell this news item as constructive news focused on solutions and positive responses.

Original title: %s
Original content: %s

Rules:
- Focus on community response, solutions, prevention and recovery
- Leave out traumatic details
- Keep the facts accurate; shift the focus, do not invent
- Summary of %s, under %d characters, on a single line

Answer with exactly two lines:
HEADLINE: constructive headline
SUMMARY: constructive summary

Nothing else.`, title, body, length, limit)
}
