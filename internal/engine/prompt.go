package engine

// LLM prompt templates. Data only, no logic.

// systemJSONOnly is sent as the system instruction to every backend.
const systemJSONOnly = `You are an audience research analyst. You respond with valid JSON only: no markdown, no code fences, no commentary.`

// ExtractPainPointsPrompt asks for pain points in one batch of comments.
// Args: current date, channel name, numbered comments.
const ExtractPainPointsPrompt = `Current date: %s

Below are viewer comments from the YouTube channel "%s". Each comment is numbered and shows its like count.

Extract PAIN POINTS: things viewers EXPLICITLY say they are confused about, struggle with, or ask the creator to cover.

Rules:
- Only report confusion or requests that are explicitly stated in a comment. Never infer or invent topics.
- "topic" is a short noun or concept (1-4 words), e.g. "docker networking", "sourdough starter". NEVER a video title, NEVER a solution.
- "struggle" describes what the viewer cannot do or understand, in one sentence.
- "evidence" MUST be a verbatim quote copied from the comment (at most 200 characters).
- "comment_id" is the number of the comment the evidence comes from.
- "sentiment" is one of: confused, frustrated, requesting, curious.
- "engagement" is the like count of that comment.
- Ignore praise, jokes, spam and off-topic chatter.
- If no comment contains a pain point, return {"pain_points": []}.

Respond with JSON:
{"pain_points": [{"topic": "...", "struggle": "...", "sentiment": "...", "evidence": "...", "comment_id": 1, "engagement": 0}]}

Comments:
%s`

// ClusterPainPointsPrompt merges pain points across batches.
// Args: minimum mention count, numbered pain points (JSON lines).
const ClusterPainPointsPrompt = `Below is a numbered list of audience pain points extracted from comments, one JSON object per line.

Merge items that describe the SAME topic.

Rules:
- Do NOT invent new topic names. The merged "topic" MUST be copied from one of the merged items.
- "source_ids" lists the numbers of every item merged into the topic.
- "total_engagement" is the sum of engagement over merged items; "mention_count" is the number of merged items.
- "actionable" is true only if a creator could answer the topic with a video. Pure praise, unanswerable one-off personal questions and off-topic requests are NOT actionable; explain in "actionability_reason".
- Drop topics mentioned fewer than %d times or not actionable.
- "sample_evidence" holds up to 3 verbatim evidence quotes from the merged items.
- "video_angles" holds up to 2 short angle hints (how a video could answer the struggle), never full titles.

Respond with JSON:
{"gaps": [{"topic": "...", "struggle": "...", "source_ids": [1, 2, 3], "total_engagement": 0, "mention_count": 3, "actionable": true, "actionability_reason": "...", "sample_evidence": ["..."], "video_angles": ["..."]}]}

Pain points:
%s`

// VerifyGapsPrompt classifies each gap against the creator's own transcripts.
// Args: numbered gaps, transcript excerpts.
const VerifyGapsPrompt = `You are checking whether a creator has ALREADY covered topics their audience asks about.

For EACH topic below, read the creator's transcript excerpts and classify strictly:
- "SATURATED": the transcripts contain a full explanation of the topic.
- "UNDER_EXPLAINED": the topic is mentioned only briefly or superficially.
- "TRUE_GAP": the topic is not mentioned at all.

"evidence" MUST be a short verbatim quote from the transcripts that justifies SATURATED or UNDER_EXPLAINED, prefixed with the video title in brackets. For TRUE_GAP use exactly "No mention found".
Return every topic exactly once, using its "id".

Respond with JSON:
{"verified": [{"id": 1, "topic": "...", "status": "TRUE_GAP", "evidence": "No mention found"}]}

Topics:
%s

Creator transcripts:
%s`
