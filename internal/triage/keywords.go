package triage

// 关键词表按信号强度分层，全部小写匹配。

// highPriorityKeywords 高优先级关键词，单次命中 30 分
var highPriorityKeywords = []string{
	"urgent", "asap", "critical", "emergency", "immediate",
	"crisis", "escalation", "blocker", "showstopper",
}

// timeSensitiveKeywords 时间敏感关键词，单次命中 20 分
var timeSensitiveKeywords = []string{
	"today", "tomorrow", "eod", "cob", "deadline", "due date",
	"by end of", "within", "expires", "expiring", "overdue",
}

// actionKeywords 行动请求关键词，每次命中 15 分，至多计 2 次
var actionKeywords = []string{
	"please review", "need approval", "waiting for", "action required",
	"please confirm", "please respond", "need your", "require your",
	"can you", "could you", "would you", "will you",
}

// followupKeywords 跟进提醒关键词，单次命中 15 分
var followupKeywords = []string{
	"follow up", "following up", "reminder", "second request",
	"haven't heard", "checking in", "any update", "status update",
}

// importantTitles 发件人头衔关键词，命中 40 分
var importantTitles = []string{
	"ceo", "cto", "cfo", "coo", "president", "vice president", "vp",
	"director", "manager", "supervisor", "head of", "chief", "executive",
}

// sensitiveDomains 敏感业务域关键词，命中 30 分
var sensitiveDomains = []string{
	"legal", "compliance", "finance", "hr", "security",
}
