package agent

// Agent names registered with the backing service.
const (
	DownloaderName = "WebContentDownloader"
	GeneratorName  = "QuizGenerator"
	PresenterName  = "QuizPresenter"
)

const downloaderInstructions = `- Use the web search tool to extract readable content from the internet
- Strip ads, navigation, and irrelevant sections
- Return title and cleaned body text`

const generatorInstructions = `- Generate 5 factual questions based on the content
- Include concise answers
- Format the response as an object with a 'questions' array of objects with 'question' and 'answer' fields`

const presenterInstructions = `- Present one question at a time
- Wait for user input
- Compare user response to expected answer (basic match or semantic similarity)
- Provide feedback: correct/incorrect + explanation
- Score the quiz and summarize performance`

// DownloaderDefinition describes the web content downloader agent.
func DownloaderDefinition() Definition {
	return Definition{
		Role:         RoleDownloader,
		Name:         DownloaderName,
		Instructions: downloaderInstructions,
		Tools:        []Tool{WebSearchTool()},
	}
}

// GeneratorDefinition describes the quiz generator agent, whose output is
// constrained to the QuestionSet schema.
func GeneratorDefinition() (Definition, error) {
	schema, err := QuestionSetSchema()
	if err != nil {
		return Definition{}, err
	}
	return Definition{
		Role:         RoleGenerator,
		Name:         GeneratorName,
		Instructions: generatorInstructions,
		OutputSchema: schema,
	}, nil
}

// PresenterDefinition describes the quiz presenter agent.
func PresenterDefinition() Definition {
	return Definition{
		Role:         RolePresenter,
		Name:         PresenterName,
		Instructions: presenterInstructions,
	}
}

// Definitions returns the three pipeline agent definitions in pipeline order.
func Definitions() ([]Definition, error) {
	gen, err := GeneratorDefinition()
	if err != nil {
		return nil, err
	}
	return []Definition{DownloaderDefinition(), gen, PresenterDefinition()}, nil
}
