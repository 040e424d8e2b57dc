package agent

const (
	planningSystemPrompt  = "You are a thoughtful AI assistant that analyzes queries deeply."
	decisionSystemPrompt  = "You are an AI that decides information gathering strategies."
	synthesisSystemPrompt = "You are an AI that synthesizes information to create comprehensive answers."
	responseSystemPrompt  = "You are a helpful AI assistant that provides comprehensive, accurate responses based on careful analysis and research."
)

const planningPromptTemplate = `
You are an advanced AI agent analyzing a user query. Break down the query and create a plan.

User Query: %s
Context: %s

Think through this step by step:
1. What is the user really asking for?
2. What type of information or services might be needed?
3. What's the best approach to answer this comprehensively?
4. Are there any potential challenges or edge cases?

Provide your analysis and reasoning:
`

const decisionPromptTemplate = `
Based on this query and planning reasoning, decide what information sources to use:

Query: %s
Planning: %s

Available services: %s

Should I:
1. Search the knowledge base (RAG)?
2. Use external services? If so, which ones?
3. Both?

Respond with JSON format:
{
    "use_rag": true/false,
    "services_to_use": ["service1", "service2"],
    "reasoning": "explanation"
}
`

const synthesisPromptTemplate = `
Now analyze and synthesize the gathered information to answer the user's query:

Original Query: %s
Planning: %s

Gathered Information:
%s

Think through:
1. What are the key insights from the gathered information?
2. How does this information address the user's query?
3. Are there any gaps, contradictions, or limitations?
4. What would be the most helpful and accurate response?

Provide your synthesis and reasoning:
`

const responsePromptTemplate = `
Based on your thinking process and gathered information, provide a clear, helpful, and comprehensive response to the user's query.

User Query: %s
Context: %s

Your Thinking Process:
%s

Gathered Information:
%s

Provide a direct, helpful answer that:
1. Directly addresses the user's question
2. Incorporates relevant insights from your research
3. Is clear and well-structured
4. Acknowledges any limitations or uncertainties

Response:
`
