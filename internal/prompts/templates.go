// Package prompts holds the fixed template library for the paper
// dialogue: stage questions, section generation templates, review and
// optimization prompts, and the per-role system prompts. Templates use
// {name} placeholders filled by the render helpers.
package prompts

import (
	"sort"
	"strings"
)

// SystemRole is the first system message of every paper session.
const SystemRole = `You are an experienced academic writing expert with many years of research and supervision behind you.
Your job is to help researchers write high-quality academic papers that are rigorous, well-grounded, and original.
You are skilled at guiding users to provide detailed information, and at turning that information into complete, logically structured papers.`

// NoInfoCollected is the formatter fallback when nothing has been gathered.
const NoInfoCollected = "No information collected yet."

// InformationCollection maps a stage name to the questions asked at
// that stage.
var InformationCollection = map[string]string{
	"initial": `As an academic writing expert, I will help you produce a high-quality paper.

To get started, I need a few basics:

1. **Research topic**: What problem or area does your research focus on?
2. **Research background**: Why this topic? What is its practical significance?
3. **Research objective**: What do you hope to achieve with this study?
4. **Target journal/conference**: Where do you plan to submit? (This tells me about format requirements.)

Answer briefly and I will guide you through the rest.`,

	"research_background": `Thanks for the details. Let's dig into the research background:

1. **Theoretical basis**: Which theories or conceptual frameworks underpin your work?
2. **Prior work**: What are the important existing results in this area?
3. **Research gap**: Where does the existing work fall short?
4. **Research question**: What specific question does your study answer?

A solid background makes for a much more persuasive introduction.`,

	"methodology": `Next, the research method:

1. **Research design**: What design do you use? (experiment, case study, survey, ...)
2. **Data source**: Where does the data come from? How large is the sample?
3. **Data collection**: How is data collected? (questionnaire, interview, observation, experiment, ...)
4. **Analysis**: How do you analyze it? (statistics, content analysis, modeling, ...)
5. **Tools**: Which software or instruments were involved?

A clear methodology section is what makes the paper credible.`,

	"results": `Now the results:

1. **Main findings**: What are the principal findings or conclusions?
2. **Data presentation**: Which figures, tables, or statistics do you want to show?
3. **Key indicators**: Which quantitative or qualitative indicators matter most?
4. **Unexpected findings**: Anything surprising but valuable?

Be as specific as you can, including the actual numbers.`,

	"discussion": `Let's talk about what the results mean:

1. **Interpretation**: How do you explain the findings? Why did they come out this way?
2. **Theoretical contribution**: How does the work extend or challenge existing theory?
3. **Practical implications**: What guidance does it offer practitioners?
4. **Limitations**: Where is the study limited?
5. **Future directions**: What should be explored next?

This is where the paper earns its depth.`,

	"literature_review": `Finally, the literature review:

1. **Core literature**: Which classics must a reader of this area know?
2. **Recent work**: What are the important results of the last 3-5 years?
3. **Frameworks**: Which theoretical frameworks do you draw on?
4. **Schools of thought**: What competing perspectives exist in the field?
5. **Critique**: What is your critical take on the existing work?

A thorough review shows real command of the field.`,
}

// ContentGeneration maps a paper section to its generation template.
// Each template takes {collected_info}.
var ContentGeneration = map[string]string{
	"abstract": `Based on the research information below, write the paper's Abstract:

{collected_info}

Requirements:
1. Cover background, objective, method, and main findings
2. 200-300 words
3. Formal academic register
4. Emphasize novelty and importance
5. No first person

Write the abstract:`,

	"introduction": `Based on the research information below, write the paper's Introduction:

{collected_info}

Requirements:
1. Open with the broad context and narrow to the specific research question
2. Establish the importance and necessity of the study
3. Briefly survey the relevant literature
4. State the research question and objectives explicitly
5. Close with the structure of the paper
6. 1000-1500 words
7. Academic register, clear logic

Write the introduction:`,

	"literature_review": `Based on the research information below, write the paper's Literature Review:

{collected_info}

Requirements:
1. Survey the field systematically
2. Organize by theme or chronology
3. Analyze critically, do not merely list
4. Identify the gaps the present study fills
5. Motivate the necessity of this study
6. 2000-3000 words
7. Consistent citation style, tight reasoning

Write the literature review:`,

	"methodology": `Based on the research information below, write the paper's Methodology:

{collected_info}

Requirements:
1. Describe the research design and procedure in detail
2. Specify data source, sampling, and sample size
3. Explain the collection methods and instruments
4. Explain the analysis techniques
5. Address reliability and validity
6. 1500-2000 words
7. Precise, reproducible language

Write the methodology:`,

	"results": `Based on the research information below, write the paper's Results:

{collected_info}

Requirements:
1. Report findings objectively, without interpretation
2. Describe tables and figures in prose
3. Order results logically
4. Highlight the key findings and numbers
5. Present data clearly and accurately
6. 2000-3000 words
7. No discussion in this section

Write the results:`,

	"discussion": `Based on the research information below, write the paper's Discussion:

{collected_info}

Requirements:
1. Interpret the findings in depth
2. Compare against the existing literature
3. State theoretical and practical contributions
4. Assess limitations honestly
5. Propose future directions
6. 1500-2000 words
7. Deep, rigorous argument

Write the discussion:`,

	"conclusion": `Based on the research information below, write the paper's Conclusion:

{collected_info}

Requirements:
1. Summarize the main findings
2. Emphasize contribution and value
3. Note limitations briefly
4. Point to future work
5. Echo the introduction
6. 500-800 words
7. Concise and definite

Write the conclusion:`,
}

// SectionRequirements gives the generator role the per-section
// requirements in short form, for use in the collaboration prompt.
var SectionRequirements = map[string]string{
	"abstract":          "Cover background, objective, method, and main findings in 200-300 words of formal academic prose; stress the novelty; no first person.",
	"introduction":      "Open broad and narrow to the research question, motivate the study, survey key literature briefly, state objectives, outline the paper; 1000-1500 words.",
	"literature_review": "Survey the field systematically by theme or chronology, analyze critically rather than list, identify the gap this study fills; 2000-3000 words.",
	"methodology":       "Describe design, data source, sampling, collection methods, instruments, and analysis techniques precisely enough to reproduce; address reliability and validity; 1500-2000 words.",
	"results":           "Report findings objectively without interpretation, describe tables and figures in prose, highlight key numbers; 2000-3000 words.",
	"discussion":        "Interpret the findings in depth, compare with existing literature, state contributions, assess limitations, propose future work; 1500-2000 words.",
	"conclusion":        "Summarize findings, emphasize contribution, note limitations, point to future work, echo the introduction; 500-800 words.",
}

// QualityReview asks a reviewer to audit content. Takes {content}.
const QualityReview = `As a strict academic referee, review the following paper content:

{content}

Evaluate along these dimensions:

1. **Scholarly convention**: Is the language academic? Any colloquialisms?
2. **Logical rigor**: Is the argument coherent and internally consistent?
3. **Completeness**: Does it contain everything this part should?
4. **Originality**: Does it bring out the novel contribution?
5. **Readability**: Is it clear and well organized?
6. **Specific issues**: Point out concrete problems and where to fix them

Give a detailed review with revision suggestions:`

// StructureOptimization asks for structural rework. Takes {content}.
const StructureOptimization = `As a paper structure specialist, improve the structure and organization of the following content:

{content}

Work on:

1. **Paragraphing**: Are the paragraph breaks right? Anything to regroup?
2. **Logical flow**: Is the order of presentation optimal?
3. **Transitions**: Do sections and paragraphs connect naturally?
4. **Emphasis**: Are the key points prominent?
5. **Redundancy**: What repeats and should be cut?

Provide the improved content or concrete restructuring advice:`

// Collaboration maps a role name to its task prompt. Placeholders vary
// per role: collector takes {collected_info} and {current_stage};
// generator takes {section}, {collected_info}, {requirements};
// reviewer and optimizer take {content}.
var Collaboration = map[string]string{
	"collector": `You are an information collection specialist. Your tasks:
1. Analyze the collected information and identify what is missing
2. Design targeted questions that draw out more detail
3. Judge whether the information is complete and sufficient

Collected so far:
{collected_info}

Current stage: {current_stage}

Work out what is still needed and ask 3-5 guiding questions:`,

	"generator": `You are an academic content generation specialist. Your tasks:
1. Generate high-quality paper content from the collected information
2. Keep it within scholarly convention
3. Maintain rigorous, professional academic language

Generate the {section} section from the following information:
{collected_info}

Requirements:
{requirements}

Write the content:`,

	"reviewer": `You are a paper quality review specialist. Your tasks:
1. Audit the content strictly
2. Find logical, linguistic, and convention problems
3. Give concrete improvement advice

Review the following:
{content}

Dimensions:
1. Scholarly convention
2. Logical rigor
3. Completeness
4. Language
5. Originality

Produce a detailed review report:`,

	"optimizer": `You are a paper structure optimization specialist. Your tasks:
1. Improve the overall structure and organization
2. Improve the logical flow of paragraphs
3. Strengthen coherence and readability

Optimize the structure of the following:
{content}

Goals:
1. Better logic
2. Better readability
3. Clear emphasis
4. Smooth transitions

Provide the optimization or the optimized content:`,
}

// Improvement feeds a review and an optimization back into the
// generator. Takes {content}, {review}, {optimization}.
const Improvement = `Improve the content based on the review and the structural advice below.

Original content:
{content}

Review:
{review}

Structural advice:
{optimization}

Write the improved content:`

// Extraction instructs a backend to pull structured fields out of a
// free-text user turn. Takes {input} and {current_stage}.
const Extraction = `Extract the academic-paper information from the user input below and return it as a structured object.

User input:
{input}

Current stage: {current_stage}

Extract any of the following that are present:
- research topic
- research background
- research objective
- research method
- data source
- research findings
- theoretical basis
- citations
- research question
- research significance
- research limitations
- future directions

Return the extracted information as JSON, for example:
{
    "research topic": "...",
    "research background": "..."
}

Omit any field that is not present.`

// ExtractionSystem is the system prompt for the extraction call.
const ExtractionSystem = "You are an information extraction expert, skilled at pulling structured information out of text."

// Render substitutes {name} placeholders in a template.
func Render(template string, vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

// StagePrompt returns the collection questions for a stage, falling
// back to the initial questions for unknown stages.
func StagePrompt(stage string) string {
	if p, ok := InformationCollection[stage]; ok {
		return p
	}
	return InformationCollection["initial"]
}

// SectionPrompt returns the generation template for a section filled
// with the formatted collected info.
func SectionPrompt(section string, collectedInfo map[string]string) string {
	template, ok := ContentGeneration[section]
	if !ok {
		return ""
	}
	return Render(template, map[string]string{
		"collected_info": FormatCollectedInfo(collectedInfo),
	})
}

// FormatCollectedInfo renders collected info as **key**: value lines,
// sorted by key so output is stable.
func FormatCollectedInfo(info map[string]string) string {
	if len(info) == 0 {
		return NoInfoCollected
	}
	keys := make([]string, 0, len(info))
	for k, v := range info {
		if v != "" {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return NoInfoCollected
	}
	sort.Strings(keys)

	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString("**" + k + "**: " + info[k])
	}
	return sb.String()
}

// CollectionMessage builds the assistant message that opens a stage,
// appending a summary of what the user has provided so far.
func CollectionMessage(stage string, collectedInfo map[string]string) string {
	base := StagePrompt(stage)
	if len(collectedInfo) == 0 {
		return base
	}
	summary := FormatCollectedInfo(collectedInfo)
	if summary == NoInfoCollected {
		return base
	}
	return base + "\n\n**Information you have provided so far:**\n" + summary
}
