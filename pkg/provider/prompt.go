package provider

import "github.com/verdant-ai/verdant/pkg/models"

const identifyPrompt = `Identify the plant in this photo. Answer using exactly these labels, one per line:
Plant: <common name>
Scientific Name: <binomial name>
Family: <botanical family>
Confidence: <0-100>%
Description: <one or two sentences>
Toxicity: <safe|mild|moderate|severe>
Difficulty: <easy|moderate|hard>
Growth Rate: <slow|moderate|fast>
Light: <light needs>
Water: <watering needs>
Humidity: <humidity needs>
Temperature: <temperature range>
Care Tips: <tip>; <tip>; <tip>`

const diagnosePrompt = `Assess the health of the plant in this photo. Answer using exactly these labels, one per line:
Condition: <main problem or "Healthy">
Confidence: <0-100>%
Status: <healthy|needs attention|critical>
Severity: <low|medium|high>
Urgency: <low|medium|high>
Summary: <one or two sentences>
Issues: <issue>; <issue>
Recommendations: <action>; <action>; <action>`

const chatPrompt = `You are a friendly plant care expert. Answer the question about the photo.
Start with "Answer:" and finish with "Suggestions:" followed by follow-up questions separated by semicolons.`

// Prompt returns the instruction text for feature.
func Prompt(feature models.Feature) string {
	switch feature {
	case models.FeatureDiagnose:
		return diagnosePrompt
	case models.FeatureChat:
		return chatPrompt
	default:
		return identifyPrompt
	}
}
