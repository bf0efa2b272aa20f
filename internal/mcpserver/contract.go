package mcpserver

// StoryFormatContract describes the Markdown document read_story returns
// and create_story accepts.
const StoryFormatContract = `# Gazette Story Format

Every story exchanged with Gazette is a Markdown document with YAML
frontmatter followed by the story content.

## Structure

` + "```" + `markdown
---
headline: Wildfires kill eight   # REQUIRED, unique within the catalog
author: Li Zhou                  # set to the acting user on create
public: true                     # OPTIONAL, defaults to false
date: 2020-09-10                 # OPTIONAL, YYYY-MM-DD or RFC 3339
---
Oregon faces fire conditions unseen in decades.
` + "```" + `

## Rules

1. The ` + "`---`" + ` fences must be the first thing in the document.
2. ` + "`headline`" + ` is required. When it is missing the first ` + "`# heading`" + `
   of the body is used instead.
3. Non-public stories are visible to their author and to subscribers only.
4. Only users with the author role may create stories, and only a story's
   author may delete it.
5. Stories are addressed by position (0-based, in catalog order) or by
   headline. Positions shift when an earlier story is deleted.
`
