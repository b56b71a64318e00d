package prompt

// preamble args: alert type, subject kind, subject JSON.
const preamble = `
Por favor, analise o caso abaixo.

Considere os seguintes níveis de risco:
1 - Baixo;
2 - Médio (possível ligação com PEPs);
3 - Alto (PEP, indivíduos ou empresas com histórico em listas de sanções, etc.)

Tipo de Alerta: %s

Informação do %s:
%s
`

const merchantBody = `
Total de Transações PIX:
- Cash In: %s
- Cash Out: %s

Transações em Horários Atípicos:
- Cash In PIX: %s
- Cash Out PIX: %s

Concentração de Transações por Portador de Cartão:
%s

Concentração de Issuing:
%s

Transações Negadas:
%s

Histórico Profissional:
%s

Transações Confirmadamente Executadas Dentro do Presídio (Atenção especial às colunas status e transaction_type. Transações negadas ou com errors também devem ser consideradas):
%s

Contatos:
%s

Dispositivos Utilizados:
%s

Produtos na Loja InfinitePay:
%s

Sanções Judiciais (Dê detalhes sobre o caso durante a análise. Pensão alimentícia ou casos de família podem ser desconsiderados):
%s

Transação PIX Negadas e motivo (coluna risk_check):
%s

Concentrações PIX:
Cash In:
%s
Cash Out:
%s

Informações sobre processos judiciais:
%s

Histórico de Offenses:
%s

Transações de Apostas via PIX:
%s

%s

%s
`

const cardholderBody = `
Total de Transações PIX:
- Cash In: %s
- Cash Out: %s

Transações em Horários Atípicos:
- Cash In PIX: %s
- Cash Out PIX: %s

Concentração de Issuing:
%s

Análise Adicional para Concentração de Issuing:
- Verifique se há repetição de merchant_name ou padrões de valores anômalos em total_amount.
- Utilize os campos total_amount e percentage_of_total para identificar picos ou discrepâncias.
- Considere analisar se os códigos MCC (message__card_acceptor_mcc) indicam setores de risco elevado.

Contatos (Atenção para contatos com status 'blocked'):
%s

Dispositivos Utilizados (atenção para número elevado de dispositivos):
%s

Sanções Judiciais (Dê detalhes sobre o caso durante a análise. Pensão alimentícia ou casos de família podem ser desconsiderados):
%s

Transação PIX Negadas e motivo (coluna risk_check):
%s

Concentrações PIX:
Cash In:
%s
Cash Out:
%s

Histórico Profissional:
%s

Informações sobre processos judiciais:
%s

Transações Confirmadamente Executadas Dentro do Presídio (Atenção especial às colunas status e transaction_type. Transações negadas ou com errors também devem ser consideradas):
%s

Histórico de Offenses:
%s

Transações de Apostas via PIX:
%s

%s

%s
`

const counterpartyInstructions = `Análise de Contrapartes (Top 3 Cash In e Cash Out):
ATENÇÃO ESPECIAL: Esta seção contém análise das principais contrapartes do cliente no Big Data Corp, verificando processos judiciais e sanções.
FOQUE ESPECIFICAMENTE EM:
- Contrapartes com PROCESSOS JUDICIAIS (campo "has_processes": true)
- Contrapartes com SANÇÕES (campo "has_sanctions": true)
- Nível de risco das contrapartes (campo "risk_level")
- Detalhes dos processos: número, tribunal, assunto, status
- Detalhes das sanções: tipo, fonte, descrição
- Valores transacionados com contrapartes de alto risco

INSTRUÇÕES PARA ANÁLISE:
1. Identifique quantas contrapartes têm processos judiciais
2. Identifique quantas contrapartes têm sanções
3. Calcule o valor total transacionado com contrapartes de risco ALTO ou MÉDIO
4. Detalhe os tipos de processos e sanções encontrados
5. Avalie o impacto no risco geral do cliente`

// ScoreInstruction is the exact answer format the closing block asks for.
const ScoreInstruction = `Formato: "Risco de Lavagem de Dinheiro: X/10" (onde X é o número de 1 a 10)`

const closing = `

Importante - Ao final da sua análise, você DEVE incluir uma classificação de risco de lavagem de dinheiro em uma escala de 1 a 10, seguindo estas diretrizes:

- 1 a 5: Baixo risco (Normal - não exige ação adicional)
- 6: Médio risco (Normal com aviso de monitoramento)
- 7 a 8: Médio-Alto risco (requer verificação)
- 9: Alto risco (requer Business Validation urgente - BV)
- 10: Risco extremo (requer descredenciamento e reporte ao COAF)

Fatores para considerar na classificação de risco:
- Volume e frequência de transações
- Presença em listas restritivas ou processos
- Conexões com PEPs
- Transações em horários atípicos
- Transações com países de alto risco
- Compatibilidade entre perfil declarado e comportamento transacional

` + ScoreInstruction + "\n"
