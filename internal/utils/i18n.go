package utils

// Server-side strings for the handful of messages the API returns itself.
// Page copy belongs to the front end.

var translations = map[string]map[string]string{
	"en": {
		"health.ok":              "ok",
		"invalid_participant_id": "Invalid Participant ID",
		"invalid_experiment_id":  "Invalid Experiment ID",
		"invalid_credentials":    "Invalid email or password",
		"unauthorized":           "Sign in as a researcher to continue",
		"run_complete":           "This run is already complete",
		"stale_submission":       "That response is for a trial that is no longer current",
		"duplicate_submission":   "That response was already recorded",
	},
	"zh": {
		"health.ok":              "好的",
		"invalid_participant_id": "参与者编号无效",
		"invalid_experiment_id":  "实验编号无效",
		"invalid_credentials":    "邮箱或密码错误",
		"unauthorized":           "请以研究人员身份登录",
		"run_complete":           "本次实验已完成",
		"stale_submission":       "该回答对应的试次已不是当前试次",
		"duplicate_submission":   "该回答已被记录",
	},
}

// T returns the translated string for key in locale; falls back to English,
// then to the key itself.
func T(locale, key string) string {
	if m, ok := translations[locale]; ok {
		if v, ok := m[key]; ok {
			return v
		}
	}
	if m, ok := translations["en"]; ok {
		if v, ok := m[key]; ok {
			return v
		}
	}
	return key
}
