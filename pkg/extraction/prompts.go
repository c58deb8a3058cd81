package extraction

import "fmt"

const extractionSystemPrompt = `You are a knowledge extraction engine. You extract entities and the relationships between them from text.

Guidelines:
- Extract only entities that are significant to the text: people, organizations, locations, technologies, projects, concepts, events.
- Use the most complete display name the text provides for each entity.
- Entity types are open strings such as Person, Organization, Location, Technology, Project, Concept, Event.
- Relationships connect two extracted entities by name. Use a short verb phrase for the relationship type (for example "works at", "founded", "located in").
- The fact field restates the relationship as one complete sentence grounded in the text.
- Do not invent entities or relationships that are not supported by the text.

Respond with a JSON object of this exact shape:
{
  "entities": [
    {"name": "...", "type": "...", "description": "..."}
  ],
  "relationships": [
    {"source": "...", "target": "...", "type": "...", "fact": "..."}
  ]
}`

func extractionUserPrompt(text string) string {
	return fmt.Sprintf(`<TEXT>
%s
</TEXT>

Extract all significant entities and relationships from the text above.`, text)
}
