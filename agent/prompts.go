package agent

import "fmt"

const researchDirectory = "research_task"

const researchSystemPrompt = "You are a professional research assistant who is good at guiding users " +
	"to clarify their needs and at carrying out in-depth research."

const researchModeNote = "Switching to research task mode. " + researchSystemPrompt

func clarificationPrompt(question string) string {
	return fmt.Sprintf(`You are a professional and meticulous assistant. After the user asks a question, your task is to understand the real need behind it by asking friendly, guiding follow-up questions, so that you can give more precise and effective help.
When the user's question is broad or unclear, proactively ask follow-up questions that lead the user to share more background and detail.
The user's question is: %s
Please reply as described.`, question)
}

func deepDivePrompt(request string) string {
	return fmt.Sprintf(`You are a senior researcher with broad knowledge who is skilled at using external tools. The user has stated a concrete need: %s
Your task is to:
1. Identify the core of the question and its relevant details.
2. Call the available tools as much as possible (web search get_answer, GitHub search get_answer_github, local code execution python_inter and the others) to gather broad and deep information around the original question and the added details.
3. Combine what the tools return into a detailed, comprehensive and professional answer. Aim for more than 2000 words, rigorous and accurate, with real insight.
4. Show clearly how you used the tools to reach your conclusions.`, request)
}

// defaultContinuation is the refinement used when the user adds nothing
// after the clarifying question.
func defaultContinuation(question, clarification string) string {
	return fmt.Sprintf("The original question is: '%s'. Based on your clarifying question '%s', I want you to research deeply. Please continue.",
		question, clarification)
}
