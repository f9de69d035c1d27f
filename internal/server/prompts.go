package server

// Default prompt templates for C6's four call sites, registered with
// llm.NewPrompts as the fallback a PromptSource can override. Variable
// names match exactly what each agent passes to Prompts.Render.
const parameterExtractionPrompt = `Extract structured search parameters from the user's request below.

Request: $prompt

Respond with JSON only, matching this shape:
{"time_frame": "YYYY-MM-DD or empty", "domain": "one of: $domains, or empty", "query_keys": ["snake_case tokens from: $query_keys"]}`

const traceAnalysisPrompt = `Analyze the following log trace for relevance to the dispute described below.

Dispute: $dispute_text
Time frame: $time_frame
Domain: $domain
Query keys: $query_keys
Trace ID: $trace_id
Total entries: $total_entries

Timeline:
$timeline

Sample log lines:
$samples

Respond with JSON only:
{"relevance_score": 0-100, "key_finding": "...", "confidence_level": "HIGH|MEDIUM|LOW"}`

const qualityAssessmentPrompt = `Assess the overall quality of evidence gathered for this dispute across $trace_count trace(s).

Dispute: $dispute_text
Time frame: $time_frame
Domain: $domain

Respond with JSON only:
{"completeness": 0-100, "relevance": 0-100, "coverage": 0-100, "status": "good|partial|insufficient"}`

const relevanceScoringPrompt = `Score how relevant the trace below is to the dispute, given the domain's important and ignore term lists.

Dispute: $dispute_text
Time frame: $time_frame
Domain: $domain
Query keys: $query_keys
Trace ID: $trace_id
Services: $services
Important terms: $important_terms
Ignore terms: $ignore_terms

Timeline:
$timeline

Sample log lines:
$samples

Respond with JSON only:
{"relevance_score": 0-100, "confidence_score": 0-100, "key_findings": ["..."], "recommendation": "..."}`
