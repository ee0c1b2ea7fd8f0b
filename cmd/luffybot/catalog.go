package main

import "github.com/Les-dev-de-bot-vikidiens/MuffyBot/internal/catalog"

// builtinCatalog is the static script table (spec.md §4.C: "loaded at
// startup from a catalog constant"). Keys and timeouts mirror the original
// MuffyBot discord-bot/luffybot task set.
func builtinCatalog() *catalog.Catalog {
	return catalog.New([]catalog.ScriptDef{
		{
			Key:            "welcome",
			Command:        []string{"python3", "-m", "muffybot.tasks.welcome"},
			TimeoutSeconds: 540,
			Public:         true,
			Description:    "Accueil des nouveaux contributeurs sur EnVikidia",
		},
		{
			Key:            "vandalism-fr",
			Command:        []string{"python3", "-m", "muffybot.tasks.vandalism", "--lang", "fr"},
			TimeoutSeconds: 240,
			Public:         true,
			Description:    "Patrouille anti-vandalisme (wiki francophone)",
		},
		{
			Key:            "homonym",
			Command:        []string{"python3", "-m", "muffybot.tasks.homonym"},
			TimeoutSeconds: 900,
			Public:         true,
			Description:    "Detection de pages d'homonymie mal liees",
		},
		{
			Key:            "categinex",
			Command:        []string{"python3", "-m", "muffybot.tasks.categinex"},
			TimeoutSeconds: 1800,
			Public:         false,
			Description:    "Verification d'inexactitudes de categorisation",
		},
		{
			Key:            "daily-report",
			Command:        []string{"python3", "-m", "muffybot.tasks.daily_report"},
			TimeoutSeconds: 600,
			Public:         false,
			Critical:       true,
			Description:    "Rapport quotidien d'activite du wiki",
		},
		{
			Key:            "doctor",
			Command:        []string{"python3", "-m", "muffybot.tasks.doctor"},
			TimeoutSeconds: 300,
			Public:         false,
			Critical:       true,
			Description:    "Diagnostic de sante du bot et de ses dependances",
		},
		{
			Key:            "envikidia-annual-pages",
			Command:        []string{"python3", "-m", "muffybot.tasks.envikidia_annual_pages"},
			TimeoutSeconds: 1200,
			Public:         false,
			Description:    "Creation des pages annuelles EnVikidia",
		},
		{
			Key:            "envikidia-sandboxreset",
			Command:        []string{"python3", "-m", "muffybot.tasks.envikidia_sandboxreset"},
			TimeoutSeconds: 120,
			Public:         true,
			Description:    "Reinitialisation du bac a sable EnVikidia",
		},
		{
			Key:            "envikidia-weekly-talk",
			Command:        []string{"python3", "-m", "muffybot.tasks.envikidia_weekly_talk"},
			TimeoutSeconds: 300,
			Public:         false,
			Description:    "Page de discussion hebdomadaire EnVikidia",
		},
		{
			Key:            "undo-user",
			Command:        []string{"python3", "undo_user.py"},
			TimeoutSeconds: 600,
			Public:         false,
			Description:    "Annulation en masse des modifications d'un utilisateur",
		},
		{
			Key:            "daily-bot-logs",
			Command:        []string{"python3", "discord_logger.py"},
			TimeoutSeconds: 120,
			Public:         false,
			Critical:       true,
			Description:    "Export quotidien des journaux du bot (housekeeping)",
		},
		{
			Key:            "daily-config-backup",
			Command:        []string{"python3", "-m", "muffybot.task_control", "--backup-config"},
			TimeoutSeconds: 60,
			Public:         false,
			Critical:       true,
			Description:    "Sauvegarde quotidienne de la configuration (housekeeping)",
		},
	})
}
