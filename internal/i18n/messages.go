package i18n

var german = map[string]string{
	"menu.title":    "Erfolge",
	"menu.progress": "Fortschritt",
	"menu.login":    "Anmelden, um Fortschritt zu speichern",
	"menu.empty":    "Noch keine Erfolge freigeschaltet. Schau dich um!",

	"achievements.console":      "Konsolen-Entdecker",
	"achievements.konami":       "Cheat-Code-Meister",
	"achievements.pet-cat":      "Katzenstreichler",
	"achievements.duck":         "Entenfinder",
	"achievements.bug-squasher": "Käferjäger",
	"achievements.kaboom":       "Kaboom!",

	"validation.form.invalid":         "Bitte korrigiere die markierten Felder.",
	"validation.discordId.required":   "Bitte gib deine Discord-ID an.",
	"validation.discordId.numeric":    "Die Discord-ID darf nur Ziffern enthalten.",
	"validation.discordId.length":     "Die Discord-ID muss 17 bis 19 Ziffern lang sein.",
	"validation.username.required":    "Bitte gib deinen Benutzernamen an.",
	"validation.username.invalid":     "Ungültiger Discord-Benutzername.",
	"validation.banReason.required":   "Bitte gib den Bangrund an.",
	"validation.banReason.max":        "Der Bangrund darf höchstens 500 Zeichen lang sein.",
	"validation.unbanReason.required": "Bitte begründe deinen Entbannungsantrag.",
	"validation.unbanReason.min":      "Die Begründung muss mindestens 50 Zeichen lang sein.",
	"validation.unbanReason.max":      "Die Begründung darf höchstens 2000 Zeichen lang sein.",
	"validation.name.required":        "Bitte gib deinen Namen an.",
	"validation.name.max":             "Der Name darf höchstens 100 Zeichen lang sein.",
	"validation.email.required":       "Bitte gib deine E-Mail-Adresse an.",
	"validation.email.invalid":        "Bitte gib eine gültige E-Mail-Adresse an.",
	"validation.subject.required":     "Bitte gib einen Betreff an.",
	"validation.subject.max":          "Der Betreff darf höchstens 150 Zeichen lang sein.",
	"validation.message.required":     "Bitte schreib uns eine Nachricht.",
	"validation.message.min":          "Die Nachricht muss mindestens 10 Zeichen lang sein.",
	"validation.message.max":          "Die Nachricht darf höchstens 2000 Zeichen lang sein.",
	"validation.serverName.required":  "Bitte gib den Servernamen an.",
	"validation.serverName.max":       "Der Servername darf höchstens 100 Zeichen lang sein.",
	"validation.inviteLink.required":  "Bitte gib einen Einladungslink an.",
	"validation.inviteLink.invalid":   "Bitte gib einen gültigen Discord-Einladungslink an.",
	"validation.memberCount.required": "Bitte gib die Mitgliederzahl an.",
	"validation.memberCount.numeric":  "Die Mitgliederzahl darf nur Ziffern enthalten.",
	"validation.description.required": "Bitte beschreibe deinen Server.",
	"validation.description.min":      "Die Beschreibung muss mindestens 30 Zeichen lang sein.",
	"validation.description.max":      "Die Beschreibung darf höchstens 1500 Zeichen lang sein.",
}

var english = map[string]string{
	"menu.title":    "Achievements",
	"menu.progress": "Progress",
	"menu.login":    "Log in to save your progress",
	"menu.empty":    "No achievements unlocked yet. Look around!",

	"achievements.console":      "Console Explorer",
	"achievements.konami":       "Cheat Code Master",
	"achievements.pet-cat":      "Cat Petter",
	"achievements.duck":         "Duck Finder",
	"achievements.bug-squasher": "Bug Squasher",
	"achievements.kaboom":       "Kaboom!",

	"validation.form.invalid":         "Please correct the highlighted fields.",
	"validation.discordId.required":   "Please enter your Discord ID.",
	"validation.discordId.numeric":    "The Discord ID may only contain digits.",
	"validation.discordId.length":     "The Discord ID must be 17 to 19 digits long.",
	"validation.username.required":    "Please enter your username.",
	"validation.username.invalid":     "Invalid Discord username.",
	"validation.banReason.required":   "Please enter the ban reason.",
	"validation.banReason.max":        "The ban reason may be at most 500 characters.",
	"validation.unbanReason.required": "Please explain your unban request.",
	"validation.unbanReason.min":      "The explanation must be at least 50 characters.",
	"validation.unbanReason.max":      "The explanation may be at most 2000 characters.",
	"validation.name.required":        "Please enter your name.",
	"validation.name.max":             "The name may be at most 100 characters.",
	"validation.email.required":       "Please enter your email address.",
	"validation.email.invalid":        "Please enter a valid email address.",
	"validation.subject.required":     "Please enter a subject.",
	"validation.subject.max":          "The subject may be at most 150 characters.",
	"validation.message.required":     "Please write us a message.",
	"validation.message.min":          "The message must be at least 10 characters.",
	"validation.message.max":          "The message may be at most 2000 characters.",
	"validation.serverName.required":  "Please enter the server name.",
	"validation.serverName.max":       "The server name may be at most 100 characters.",
	"validation.inviteLink.required":  "Please enter an invite link.",
	"validation.inviteLink.invalid":   "Please enter a valid Discord invite link.",
	"validation.memberCount.required": "Please enter the member count.",
	"validation.memberCount.numeric":  "The member count may only contain digits.",
	"validation.description.required": "Please describe your server.",
	"validation.description.min":      "The description must be at least 30 characters.",
	"validation.description.max":      "The description may be at most 1500 characters.",
}
