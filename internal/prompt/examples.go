package prompt

import (
	"fmt"
	"strings"
)

type example struct {
	Text      string
	Label     string
	Reasoning string
}

var fewShotExamples = []example{
	{
		Text:      "Miami-Dade orders coastal evacuation as Hurricane Irma threatens CLICK BELOW FOR FULL STORY",
		Label:     "humanitarian",
		Reasoning: "Direct evacuation order, critical safety information",
	},
	{
		Text:      "@joenapoli7 @JohnKasich Look @ Moonbeams law on sex trafficked children! Opens flood gates wide open! #WeRAwake #WeRWatchingU #SaveOurChildren",
		Label:     "not_humanitarian",
		Reasoning: "Political commentary unrelated to disaster relief",
	},
	{
		Text:      "Calling all nurses! Florida is in desperate need in assistance. #Irma",
		Label:     "humanitarian",
		Reasoning: "Direct call for medical assistance, an actionable aid request",
	},
	{
		Text:      "You are not alone there are plenty of rolling stones. There was a wave in 2014 expect Tsunami in 2019.",
		Label:     "not_humanitarian",
		Reasoning: "General statement without specific disaster relief information",
	},
}

func fewShotBlock() string {
	parts := make([]string, len(fewShotExamples))
	for i, ex := range fewShotExamples {
		parts[i] = fmt.Sprintf("Tweet: %q\nLabel: %s\nReasoning: %s", ex.Text, ex.Label, ex.Reasoning)
	}
	return strings.Join(parts, "\n\n")
}
