package extractor

import "fmt"

const textPromptTemplate = `You are a recipe extraction AI. Extract the recipe from this text.

Video Title: %s

Recipe Text:
%s

Extract the following information:
1. Recipe title (use the video title if no specific recipe title in text)
2. Ingredients list (with exact quantities as stated)
3. Cooking steps/instructions (in order, if available)
4. Language of the content (en for English, zh for Chinese, etc.)

Return the information in the following JSON format:
{
  "title": "Recipe Name",
  "ingredients": ["ingredient 1 with quantity", "ingredient 2 with quantity", ...],
  "steps": ["step 1", "step 2", ...],
  "language": "en"
}

Important guidelines:
- Keep all quantities EXACTLY as stated
- If no steps are provided, return an empty steps array []
- Be concise but complete
- If the content is in Chinese, keep it in Chinese but set language to "zh"
- If this is not a recipe, return: {"error": "Not a recipe"}

Return ONLY the JSON object, no other text.
`

const videoPrompt = `You are a recipe extraction AI. Analyze this cooking video and extract the recipe information.

Extract the following information:
1. Recipe title (create a descriptive name if not explicitly stated)
2. Ingredients list (with quantities if mentioned)
3. Cooking steps/instructions (in order)
4. Language of the content (en for English, zh for Chinese, etc.)

Return the information in the following JSON format:
{
  "title": "Recipe Name",
  "ingredients": ["ingredient 1 with quantity", "ingredient 2 with quantity", ...],
  "steps": ["step 1", "step 2", ...],
  "language": "en"
}

Important guidelines:
- If ingredients appear as text overlays in the video, extract them
- If ingredients are spoken, transcribe them
- Keep ingredient quantities and units
- Number steps in order
- Be concise but complete
- If the video is in Chinese, keep content in Chinese but set language to "zh"
- If this is not a cooking/recipe video, return: {"error": "Not a recipe video"}

Return ONLY the JSON object, no other text.
`

// TextPrompt builds the prompt used for descriptions, comments and page text.
func TextPrompt(title, text string) string {
	return fmt.Sprintf(textPromptTemplate, title, text)
}

// VideoPrompt returns the prompt sent alongside an uploaded video.
func VideoPrompt() string {
	return videoPrompt
}
