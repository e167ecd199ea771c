package mcpserver

// NoteFormatContract describes the canonical Markdown note format that
// LLM consumers should follow when creating or updating notes.
const NoteFormatContract = `# vaultd Note Format Contract

Every Markdown note stored in vaultd SHOULD follow this structure.

## Structure

` + "```" + `markdown
# Optional top heading

Body text in standard Markdown.

Use [[wikilinks]] to reference other notes by title (without .md extension).
Use [[target|alias]] for display text that differs from the target.
Use ![[target]] to embed another note or an attachment inline.
Use inline #tags anywhere in the body to categorize the note.
` + "```" + `

## Rules

1. **The note's title is its file name** without the ` + "`" + `.md` + "`" + ` extension.
   There is no frontmatter; renaming the file renames the note.
2. **Wikilinks** use double brackets: ` + "`" + `[[Other Note]]` + "`" + `. The target is a note
   title and is matched case-insensitively. Links that match no note are kept
   as written and simply do not resolve.
3. **Tags** are inline hashtags: ` + "`" + `#project` + "`" + `, ` + "`" + `#project/sub` + "`" + `, ` + "`" + `#to-do` + "`" + `.
   A tag starts with a letter or digit; hashtags inside fenced code blocks are
   ignored by the index.
4. **Headings** (` + "`" + `#` + "`" + ` through ` + "`" + `######` + "`" + `) form the note's outline.
5. **File paths** end with ` + "`" + `.md` + "`" + ` and use forward slashes.
6. **Encoding** is UTF-8 with a trailing newline.
7. **No HTML** unless absolutely necessary; prefer Markdown equivalents.

## Assets & Images

- Upload assets via the ` + "`" + `upload_asset` + "`" + ` tool. It returns a ` + "`" + `markdownImage` + "`" + ` field ready to paste into the note body.
- Assets are stored in the shared ` + "`" + `attachments/` + "`" + ` directory (flat, no sub-folders).
- Reference in notes using the absolute path: ` + "`" + `![description](/attachments/filename.png)` + "`" + `
- Supported formats: png, jpg, jpeg, gif, webp, svg, pdf.
- Do **not** use relative paths like ` + "`" + `./attachments/...` + "`" + ` — always use ` + "`" + `/attachments/filename` + "`" + `.

## Example

` + "```" + `markdown
# Weekly standup 2025-01-20

Attendees: Alice, Bob. #meeting-notes #project-x

![Whiteboard photo](/attachments/standup-2025-01-20.jpg)

## Action items

- [[Alice]] to review the [[Design Doc]]
- Bob to update [[Roadmap|the roadmap]]
` + "```" + `
`
