package patterns

// =============================================================================
// PATTERN DEFINITIONS BY SIGNATURE FAMILY
// All patterns are registered here and compiled once at package init.
// =============================================================================

// --- SQL INJECTION (plain text) ---
func (r *Registry) registerSQLInjectionPatterns() {
	cat := CategorySQLInjection

	r.register("sql_keyword", `(?i)(\b(SELECT|INSERT|UPDATE|DELETE|DROP|UNION|CREATE|ALTER|EXEC|EXECUTE)\b)`, cat, 0, "SQL keyword")
	r.register("sql_comment_operator", `(--|#|/\*|\*/|@@|@)`, cat, 0, "SQL comment or operator token")
	r.register("sql_tautology", `(?i)(\bOR\b\s*\d+\s*=\s*\d+|\bAND\b\s*\d+\s*=\s*\d+)`, cat, 0, "SQL tautology")
	r.register("sql_quote", "('|\"|´|`)", cat, 0, "Quote character")
	r.register("sql_stacked_exec", `(?i)(\bEXEC\b\s*\(|\bEXECUTE\b\s*\()`, cat, 0, "Stacked query execution")
	r.register("sql_catalog_proc", `(?i)(xp_|sp_|OPENROWSET|OPENDATASOURCE|OPENQUERY)`, cat, 0, "Catalog or procedure token")
	r.register("sql_timing", `(?i)(WAITFOR\s+DELAY|BENCHMARK\s*\(|SLEEP\s*\()`, cat, 0, "Timing attack token")
}

// --- XSS (html) ---
func (r *Registry) registerXSSPatterns() {
	cat := CategoryXSS

	r.register("xss_script_block", `(?is)<script[^>]*>.*?</script>`, cat, 0, "Script block")
	r.register("xss_javascript_uri", `(?i)javascript\s*:`, cat, 0, "javascript: URI")
	r.register("xss_vbscript_uri", `(?i)vbscript\s*:`, cat, 0, "vbscript: URI")
	r.register("xss_event_handler", `(?i)\bon\w+\s*=`, cat, 0, "Inline event handler")
	r.register("xss_iframe", `(?i)<iframe[^>]*>`, cat, 0, "iframe tag")
	r.register("xss_object", `(?i)<object[^>]*>`, cat, 0, "object tag")
	r.register("xss_embed", `(?i)<embed[^>]*>`, cat, 0, "embed tag")
	r.register("xss_link_href", `(?i)<link[^>]*href[^>]*>`, cat, 0, "link tag with href")
	r.register("xss_eval", `(?i)eval\s*\(`, cat, 0, "eval call")
	r.register("xss_expression", `(?i)expression\s*\(`, cat, 0, "CSS expression call")
	r.register("xss_img_js_src", `(?i)<img[^>]+src\s*=\s*["']?javascript:`, cat, 0, "Image with javascript: src")
}

// --- NOSQL INJECTION (json) ---
func (r *Registry) registerNoSQLInjectionPatterns() {
	cat := CategoryNoSQLInjection

	r.register("nosql_operator_key", `(?i)"\$\w+"\s*:`, cat, 0, "Operator-keyed object literal")
	r.register("nosql_operator_bare", `(?i)\$\w+\s*:`, cat, 0, "Bare operator key")
	r.register("nosql_where", `(?i)\$where\s*:`, cat, 0, "$where clause")
	r.register("nosql_aggregate", `(?i)\.aggregate\s*\(`, cat, 0, "Aggregation pipeline call")
}

// --- SPAM SIGNATURES (rule engine regex table) ---
// Weight is added per occurrence, with the occurrence multiplier capped at 3
// by the rule engine so one repeated token cannot dominate the score.
func (r *Registry) registerSpamSignatures() {
	cat := CategorySpamSignature

	r.register("spam_money_amount", `(?i)\b\d{4,}\s*USD\b`, cat, 15, "Large money amount mentioned")
	r.register("spam_caps_run", `[A-Z]{5,}`, cat, 10, "Excessive capital letters")
	r.register("spam_exclamations", `[!]{3,}`, cat, 10, "Excessive exclamation marks")
	r.register("spam_ip_link", `(?i)https?://\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}`, cat, 30, "IP address link")
	r.register("spam_unrealistic_claims", `(?i)\b(100%|guaranteed|risk.?free)\b`, cat, 15, "Unrealistic claims")
	r.register("spam_email_address", `(?i)[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`, cat, 5, "Multiple email addresses")
}
