package agents

// JSON schemas sent alongside structured generation calls. Kept as literals
// so a prompt and its schema can be read side by side.

const analysisSchema = `{
  "type": "object",
  "properties": {
    "gaps": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "description": {"type": "string"},
          "category": {"type": "string"},
          "severity": {"type": "integer", "minimum": 1, "maximum": 5},
          "related_questions": {"type": "array", "items": {"type": "string"}}
        },
        "required": ["description", "category", "severity"]
      }
    },
    "questions": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "question": {"type": "string"},
          "category": {"type": "string"},
          "importance": {"type": "integer", "minimum": 1, "maximum": 5},
          "suggested_answer": {"type": "string"}
        },
        "required": ["question", "category", "importance"]
      }
    },
    "strengths": {"type": "array", "items": {"type": "string"}},
    "genre_analysis": {"type": "string"},
    "complexity_score": {"type": "integer", "minimum": 1, "maximum": 10}
  },
  "required": ["gaps", "questions", "strengths", "complexity_score"]
}`

const followUpSchema = `{
  "type": "object",
  "properties": {
    "questions": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "question": {"type": "string"},
          "category": {"type": "string"},
          "importance": {"type": "integer", "minimum": 1, "maximum": 5}
        },
        "required": ["question", "category", "importance"]
      }
    }
  },
  "required": ["questions"]
}`

const outlineSchema = `{
  "type": "object",
  "properties": {
    "title": {"type": "string"},
    "premise": {"type": "string"},
    "theme": {"type": "string"},
    "main_characters": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "name": {"type": "string"},
          "role": {"type": "string"},
          "description": {"type": "string"},
          "arc": {"type": "string"},
          "motivation": {"type": "string"}
        },
        "required": ["name", "role", "description"]
      }
    },
    "setting": {"type": "string"},
    "chapters": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "title": {"type": "string"},
          "summary": {"type": "string"},
          "key_events": {"type": "array", "items": {"type": "string"}},
          "characters_involved": {"type": "array", "items": {"type": "string"}},
          "word_count_target": {"type": "integer"}
        },
        "required": ["title", "summary", "key_events", "characters_involved", "word_count_target"]
      }
    },
    "total_word_count": {"type": "integer"},
    "genre": {"type": "string"}
  },
  "required": ["title", "premise", "theme", "main_characters", "setting", "chapters", "total_word_count", "genre"]
}`

const critiqueSchema = `{
  "type": "object",
  "properties": {
    "overall_score": {"type": "integer", "minimum": 1, "maximum": 10},
    "strengths": {"type": "array", "items": {"type": "string"}},
    "weaknesses": {"type": "array", "items": {"type": "string"}},
    "suggestions": {"type": "array", "items": {"type": "string"}},
    "continuity_issues": {"type": "array", "items": {"type": "string"}},
    "character_consistency": {"type": "integer", "minimum": 1, "maximum": 10},
    "plot_coherence": {"type": "integer", "minimum": 1, "maximum": 10}
  },
  "required": ["overall_score", "strengths", "weaknesses", "suggestions", "character_consistency", "plot_coherence"]
}`

const continuitySchema = `{
  "type": "object",
  "properties": {
    "continuity_issues": {"type": "array", "items": {"type": "string"}}
  },
  "required": ["continuity_issues"]
}`

const threadUpdateSchema = `{
  "type": "object",
  "properties": {
    "updates": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "thread": {"type": "string"},
          "status": {"type": "string"}
        },
        "required": ["thread", "status"]
      }
    }
  },
  "required": ["updates"]
}`
